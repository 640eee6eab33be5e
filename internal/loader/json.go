package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// JSON parses configuration text as a JSON object.
type JSON struct {
	logger *zap.Logger
}

// NewJSON returns a JSON loader.
func NewJSON(opts ...Option) *JSON {
	o := newOptions(opts)
	return &JSON{logger: o.logger}
}

// Load decodes raw into a mapping. Objects become map[string]any, arrays
// []any and numbers json.Number, so integers keep their full precision. The
// top-level value must be an object.
func (l *JSON) Load(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fail(l.logger, FormatJSON, describeJSONError(err), err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fail(l.logger, FormatJSON, "unexpected data after top-level value", err)
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, fail(l.logger, FormatJSON, fmt.Sprintf("top-level value must be an object, got %s", jsonKind(value)), nil)
	}
	return m, nil
}

func describeJSONError(err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("%s (offset %d)", syntaxErr.Error(), syntaxErr.Offset)
	}
	if errors.Is(err, io.EOF) {
		return "empty input"
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return "unexpected end of input"
	}
	return err.Error()
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
