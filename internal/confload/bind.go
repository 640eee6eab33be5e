package confload

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const (
	tagName     = "config"
	defaultTag  = "default"
	optionalOpt = "optional"
)

var (
	markerType     = reflect.TypeOf((*Marker)(nil)).Elem()
	jsonNumberType = reflect.TypeOf((*json.Number)(nil)).Elem()
)

// schemas caches the field layout of each target type.
var schemas sync.Map

// nesting describes how a field holds a nested struct.
type nesting int

const (
	nestNone nesting = iota
	nestStruct
	nestPointer
	nestSlice
	nestMap
)

type field struct {
	key      string
	typ      reflect.Type
	required bool
	def      string
	hasDef   bool
	nesting  nesting
	nested   *schema
}

type schema struct {
	typ    reflect.Type
	fields []field
	keys   map[string]struct{}
}

// Bind constructs a T from m using strict field binding: every key in m must
// name a field of T, and every field of T without a default must be present
// in m with a non-null value. Defaults come from the `default` struct tag;
// pointer fields and fields tagged `config:",optional"` default to nil or the
// zero value. A null value for a field with a default yields the default.
//
// The same rules apply to nested structs, including structs behind pointers
// and structs held in slices and maps. A value present in m always replaces
// the default; slices and maps are never merged.
func Bind[T Config](m map[string]any) (*T, error) {
	v, err := bind(reflect.TypeOf((*T)(nil)).Elem(), m)
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

func bind(target reflect.Type, m map[string]any) (any, error) {
	s, err := schemaFor(target)
	if err != nil {
		return nil, &ConfigError{Op: "inspect " + target.String(), Err: err}
	}

	if errs := s.validate(m, "", nil); len(errs) > 0 {
		return nil, &ConfigError{Op: "bind " + target.String(), Err: errors.Join(errs...)}
	}

	input, err := s.withDefaults(m)
	if err != nil {
		return nil, &ConfigError{Op: "bind " + target.String(), Err: err}
	}

	out := reflect.New(target)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numberHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		ErrorUnused: true,
		TagName:     tagName,
		MatchName:   func(mapKey, fieldName string) bool { return mapKey == fieldName },
		Result:      out.Interface(),
	})
	if err != nil {
		return nil, &ConfigError{Op: "bind " + target.String(), Err: err}
	}
	if err := decoder.Decode(input); err != nil {
		return nil, &ConfigError{Op: "bind " + target.String(), Err: err}
	}

	return out.Interface(), nil
}

func schemaFor(t reflect.Type) (*schema, error) {
	if cached, ok := schemas.Load(t); ok {
		return cached.(*schema), nil
	}
	s, err := buildSchema(t, make(map[reflect.Type]*schema))
	if err != nil {
		return nil, err
	}
	actual, _ := schemas.LoadOrStore(t, s)
	return actual.(*schema), nil
}

// buildSchema records the keyed fields of t. seen breaks cycles through
// self-referencing types such as a Node holding []Node.
func buildSchema(t reflect.Type, seen map[reflect.Type]*schema) (*schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s is not a struct type", t)
	}
	if s, ok := seen[t]; ok {
		return s, nil
	}

	s := &schema{typ: t, keys: make(map[string]struct{}, t.NumField())}
	seen[t] = s
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Type == markerType || !sf.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(sf.Tag.Get(tagName), ",")
		if name == "" {
			name = sf.Name
		}
		if _, dup := s.keys[name]; dup {
			return nil, fmt.Errorf("%s: duplicate field key %q", t, name)
		}
		s.keys[name] = struct{}{}

		f := field{key: name, typ: sf.Type}
		f.def, f.hasDef = sf.Tag.Lookup(defaultTag)
		optional := slices.Contains(strings.Split(opts, ","), optionalOpt)
		f.required = !f.hasDef && !optional && sf.Type.Kind() != reflect.Pointer

		if elem, how := nestedStruct(sf.Type); how != nestNone {
			nested, err := buildSchema(elem, seen)
			if err != nil {
				return nil, err
			}
			f.nesting, f.nested = how, nested
		}
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func nestedStruct(t reflect.Type) (reflect.Type, nesting) {
	deref := func(t reflect.Type) reflect.Type {
		if t.Kind() == reflect.Pointer {
			return t.Elem()
		}
		return t
	}

	switch t.Kind() {
	case reflect.Struct:
		return t, nestStruct
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Struct {
			return t.Elem(), nestPointer
		}
	case reflect.Slice, reflect.Array:
		if elem := deref(t.Elem()); elem.Kind() == reflect.Struct {
			return elem, nestSlice
		}
	case reflect.Map:
		if elem := deref(t.Elem()); elem.Kind() == reflect.Struct {
			return elem, nestMap
		}
	}
	return nil, nestNone
}

// validate reports unknown keys in m and required fields missing from it,
// descending into nested structs whose values are present.
func (s *schema) validate(m map[string]any, prefix string, errs []error) []error {
	unknown := make([]string, 0)
	for key := range m {
		if _, ok := s.keys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	slices.Sort(unknown)
	for _, key := range unknown {
		errs = append(errs, fmt.Errorf("unknown field %q", prefix+key))
	}

	for _, f := range s.fields {
		value, ok := m[f.key]
		if !ok || value == nil {
			if f.required {
				errs = append(errs, fmt.Errorf("missing required field %q", prefix+f.key))
			}
			continue
		}

		path := prefix + f.key
		switch f.nesting {
		case nestStruct, nestPointer:
			if sub, ok := value.(map[string]any); ok {
				errs = f.nested.validate(sub, path+".", errs)
			}
		case nestSlice:
			if items, ok := value.([]any); ok {
				for i, item := range items {
					if sub, ok := item.(map[string]any); ok {
						errs = f.nested.validate(sub, fmt.Sprintf("%s[%d].", path, i), errs)
					}
				}
			}
		case nestMap:
			if items, ok := value.(map[string]any); ok {
				for _, k := range sortedKeys(items) {
					if sub, ok := items[k].(map[string]any); ok {
						errs = f.nested.validate(sub, path+"."+k+".", errs)
					}
				}
			}
		}
	}
	return errs
}

// withDefaults returns a copy of m in which every absent or null field with a
// default holds that default. Values present in m are kept as they are.
func (s *schema) withDefaults(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.fields))
	for k, v := range m {
		out[k] = v
	}

	for _, f := range s.fields {
		value, ok := m[f.key]
		if !ok || value == nil {
			def, set, err := f.defaultValue()
			if err != nil {
				return nil, err
			}
			if set {
				out[f.key] = def
			} else if ok {
				delete(out, f.key)
			}
			continue
		}

		nestedValue, err := f.nestedDefaults(value)
		if err != nil {
			return nil, err
		}
		out[f.key] = nestedValue
	}
	return out, nil
}

// defaultValue returns the value an absent field takes, if any.
func (f field) defaultValue() (any, bool, error) {
	if f.hasDef {
		ptr := reflect.New(f.typ)
		if err := yaml.Unmarshal([]byte(f.def), ptr.Interface()); err != nil {
			return nil, false, fmt.Errorf("default for field %q: %w", f.key, err)
		}
		return ptr.Elem().Interface(), true, nil
	}
	// An optional nested struct still carries the defaults of its own fields.
	if f.nesting == nestStruct && f.nested.hasDefaults() {
		sub, err := f.nested.withDefaults(nil)
		if err != nil {
			return nil, false, err
		}
		return sub, true, nil
	}
	return nil, false, nil
}

func (f field) nestedDefaults(value any) (any, error) {
	switch f.nesting {
	case nestStruct, nestPointer:
		if sub, ok := value.(map[string]any); ok {
			return f.nested.withDefaults(sub)
		}
	case nestSlice:
		if items, ok := value.([]any); ok {
			filled := make([]any, len(items))
			for i, item := range items {
				filled[i] = item
				if sub, ok := item.(map[string]any); ok {
					v, err := f.nested.withDefaults(sub)
					if err != nil {
						return nil, err
					}
					filled[i] = v
				}
			}
			return filled, nil
		}
	case nestMap:
		if items, ok := value.(map[string]any); ok {
			filled := make(map[string]any, len(items))
			for k, item := range items {
				filled[k] = item
				if sub, ok := item.(map[string]any); ok {
					v, err := f.nested.withDefaults(sub)
					if err != nil {
						return nil, err
					}
					filled[k] = v
				}
			}
			return filled, nil
		}
	}
	return value, nil
}

// hasDefaults reports whether s or any directly embedded struct declares a
// default. Direct struct nesting cannot be cyclic.
func (s *schema) hasDefaults() bool {
	for _, f := range s.fields {
		if f.hasDef || (f.nesting == nestStruct && f.nested.hasDefaults()) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// numberHook rejects numbers that do not fit the target field: fractions
// bound to integers, negatives bound to unsigned integers and values outside
// the target's range. It also converts json.Number, produced by loaders
// that keep integer precision.
func numberHook(from, to reflect.Type, data any) (any, error) {
	if from == jsonNumberType {
		return fromJSONNumber(data.(json.Number), to)
	}

	v := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		return data, checkFloat(v.Float(), to)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return data, checkInt(v.Int(), to)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return data, checkUint(v.Uint(), to)
	}
	return data, nil
}

func fromJSONNumber(n json.Number, to reflect.Type) (any, error) {
	if to == jsonNumberType {
		return n, nil
	}

	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			// Exponent or fraction forms such as 1e3 or 5.5.
			f, ferr := strconv.ParseFloat(n.String(), 64)
			if ferr != nil {
				return nil, fmt.Errorf("cannot use %s as %s", n, to)
			}
			if err := checkFloat(f, to); err != nil {
				return nil, err
			}
			return f, nil
		}
		return i, checkInt(i, to)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(n.String(), 64)
			if ferr != nil {
				return nil, fmt.Errorf("cannot use %s as %s", n, to)
			}
			if err := checkFloat(f, to); err != nil {
				return nil, err
			}
			return f, nil
		}
		return u, checkUint(u, to)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot use %s as %s", n, to)
		}
		if reflect.Zero(to).OverflowFloat(f) {
			return nil, fmt.Errorf("%s overflows %s", n, to)
		}
		return f, nil
	case reflect.Interface:
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", n)
		}
		return f, nil
	case reflect.String:
		return nil, fmt.Errorf("cannot use number %s as %s", n, to)
	}
	return n, nil
}

func checkFloat(f float64, to reflect.Type) error {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f != math.Trunc(f) {
			return fmt.Errorf("cannot use %v as %s", f, to)
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return fmt.Errorf("%v overflows %s", f, to)
		}
		return checkInt(int64(f), to)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f != math.Trunc(f) {
			return fmt.Errorf("cannot use %v as %s", f, to)
		}
		if f < 0 || f >= math.MaxUint64 {
			return fmt.Errorf("%v overflows %s", f, to)
		}
		return checkUint(uint64(f), to)
	case reflect.Float32:
		if reflect.Zero(to).OverflowFloat(f) {
			return fmt.Errorf("%v overflows %s", f, to)
		}
	}
	return nil
}

func checkInt(i int64, to reflect.Type) error {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if reflect.Zero(to).OverflowInt(i) {
			return fmt.Errorf("%d overflows %s", i, to)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if i < 0 || reflect.Zero(to).OverflowUint(uint64(i)) {
			return fmt.Errorf("%d overflows %s", i, to)
		}
	}
	return nil
}

func checkUint(u uint64, to reflect.Type) error {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if u > math.MaxInt64 || reflect.Zero(to).OverflowInt(int64(u)) {
			return fmt.Errorf("%d overflows %s", u, to)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if reflect.Zero(to).OverflowUint(u) {
			return fmt.Errorf("%d overflows %s", u, to)
		}
	}
	return nil
}
