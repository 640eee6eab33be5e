package confload

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type serverConfig struct {
	Marker
	Name     string         `config:"name"`
	Timeout  time.Duration  `config:"timeout" default:"5s"`
	Retries  int            `config:"retries" default:"3"`
	Tags     []string       `config:"tags,optional"`
	Database databaseConfig `config:"database"`
}

type databaseConfig struct {
	Host string `config:"host"`
	Port int    `config:"port" default:"5432"`
}

type clusterConfig struct {
	Marker
	Hosts   []string                   `config:"hosts" default:"[a, b, c]"`
	Labels  map[string]string          `config:"labels" default:"{x: 1, y: 2}"`
	Primary *databaseConfig            `config:"primary"`
	Replica []databaseConfig           `config:"replicas,optional"`
	Shards  map[string]*databaseConfig `config:"shards,optional"`
}

type limitsConfig struct {
	Marker
	Small int8    `config:"small,optional"`
	Big   int64   `config:"big,optional"`
	Count uint16  `config:"count,optional"`
	Ratio float32 `config:"ratio,optional"`
	Any   any     `config:"any,optional"`
}

type treeConfig struct {
	Marker
	Name     string       `config:"name"`
	Children []treeConfig `config:"children,optional"`
}

type badDefaultConfig struct {
	Marker
	Retries int `config:"retries" default:"many"`
}

type duplicateKeyConfig struct {
	Marker
	A string `config:"key"`
	B string `config:"key"`
}

func TestBindAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Bind[serverConfig](map[string]any{
		"name":     "api",
		"database": map[string]any{"host": "db.internal"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.Timeout)
	}
	if cfg.Retries != 3 {
		t.Fatalf("expected default retries, got %d", cfg.Retries)
	}
	if cfg.Tags != nil {
		t.Fatalf("expected nil tags, got %v", cfg.Tags)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5432 {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
}

func TestBindOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Bind[serverConfig](map[string]any{
		"name":     "api",
		"timeout":  "250ms",
		"retries":  float64(1),
		"tags":     []any{"a", "b"},
		"database": map[string]any{"host": "db", "port": float64(6432)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timeout != 250*time.Millisecond || cfg.Retries != 1 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if len(cfg.Tags) != 2 || cfg.Tags[1] != "b" {
		t.Fatalf("unexpected tags: %v", cfg.Tags)
	}
	if cfg.Database.Port != 6432 {
		t.Fatalf("unexpected port: %d", cfg.Database.Port)
	}
}

func TestBindNullKeepsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := Bind[serverConfig](map[string]any{
		"name":     "api",
		"retries":  nil,
		"database": map[string]any{"host": "db"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retries != 3 {
		t.Fatalf("expected null to keep default, got %d", cfg.Retries)
	}
}

func TestBindReportsNestedFieldPaths(t *testing.T) {
	t.Parallel()

	_, err := Bind[serverConfig](map[string]any{
		"name":     "api",
		"database": map[string]any{"port": float64(1), "user": "root"},
	})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{`unknown field "database.user"`, `missing required field "database.host"`} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestBindReportsEveryMissingField(t *testing.T) {
	t.Parallel()

	_, err := Bind[demoConfig](map[string]any{})
	if err == nil {
		t.Fatalf("expected error for empty mapping")
	}
	msg := err.Error()
	if !strings.Contains(msg, `"param1"`) || !strings.Contains(msg, `"param2"`) {
		t.Fatalf("expected both required fields in %q", msg)
	}
	if strings.Contains(msg, `"param3"`) {
		t.Fatalf("optional field reported as missing: %q", msg)
	}
}

func TestBindRejectsBadSchemas(t *testing.T) {
	t.Parallel()

	t.Run("unparsable default", func(t *testing.T) {
		if _, err := Bind[badDefaultConfig](map[string]any{}); !errors.Is(err, ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("duplicate keys", func(t *testing.T) {
		if _, err := Bind[duplicateKeyConfig](map[string]any{"key": "v"}); !errors.Is(err, ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
	})

	t.Run("pointer target", func(t *testing.T) {
		if _, err := Bind[*demoConfig](map[string]any{}); !errors.Is(err, ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
	})
}

func TestBindPreservesValues(t *testing.T) {
	t.Parallel()

	testCases := []map[string]any{
		{"param1": "", "param2": float64(0)},
		{"param1": "hello", "param2": float64(-42), "param3": "set"},
		{"param1": "ünïcödé", "param2": float64(1 << 40)},
	}

	for _, m := range testCases {
		cfg, err := Bind[demoConfig](m)
		if err != nil {
			t.Fatalf("Bind(%v) returned error: %v", m, err)
		}
		if cfg.Param1 != m["param1"] || float64(cfg.Param2) != m["param2"] {
			t.Fatalf("Bind(%v) = %+v", m, cfg)
		}
		if want, ok := m["param3"]; ok && (cfg.Param3 == nil || *cfg.Param3 != want) {
			t.Fatalf("Bind(%v) param3 = %v", m, cfg.Param3)
		}
	}
}

func TestBindReplacesCollectionDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Bind[clusterConfig](map[string]any{
		"hosts":  []any{"z"},
		"labels": map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0] != "z" {
		t.Fatalf("expected hosts [z], got %v", cfg.Hosts)
	}
	if len(cfg.Labels) != 1 || cfg.Labels["k"] != "v" {
		t.Fatalf("expected labels map[k:v], got %v", cfg.Labels)
	}

	defaults, err := Bind[clusterConfig](map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defaults.Hosts) != 3 || defaults.Labels["y"] != "2" {
		t.Fatalf("unexpected defaults: %+v", defaults)
	}

	// Defaults are parsed per bind, so one result cannot leak into another.
	defaults.Hosts[0] = "mutated"
	again, err := Bind[clusterConfig](map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Hosts[0] != "a" {
		t.Fatalf("default shared between binds: %v", again.Hosts)
	}
}

func TestBindRejectsOutOfRangeNumbers(t *testing.T) {
	t.Parallel()

	testCases := map[string]map[string]any{
		"int8 overflow":          {"small": float64(300)},
		"int64 overflow":         {"big": float64(1e19)},
		"negative into unsigned": {"count": float64(-1)},
		"uint16 overflow":        {"count": 70000},
		"fraction into integer":  {"big": 5.5},
		"float32 overflow":       {"ratio": float64(1e39)},
		"json int8 overflow":     {"small": json.Number("300")},
		"json int64 overflow":    {"big": json.Number("9223372036854775808")},
		"json negative unsigned": {"count": json.Number("-1")},
		"json fraction":          {"big": json.Number("1.5")},
		"json invalid number":    {"any": json.Number("x")},
	}

	for name, m := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Bind[limitsConfig](m)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError for %v, got %v", m, err)
			}
		})
	}
}

func TestBindAcceptsJSONNumbers(t *testing.T) {
	t.Parallel()

	cfg, err := Bind[limitsConfig](map[string]any{
		"small": json.Number("-128"),
		"big":   json.Number("9223372036854775807"),
		"count": json.Number("65535"),
		"ratio": json.Number("0.5"),
		"any":   json.Number("42"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Small != -128 || cfg.Big != 9223372036854775807 || cfg.Count != 65535 || cfg.Ratio != 0.5 {
		t.Fatalf("unexpected numbers: %+v", cfg)
	}
	if cfg.Any != int64(42) {
		t.Fatalf("expected int64 for untyped number, got %#v", cfg.Any)
	}

	timeouts, err := Bind[serverConfig](map[string]any{
		"name":     "api",
		"retries":  json.Number("7"),
		"database": map[string]any{"host": "db", "port": json.Number("6432")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if timeouts.Retries != 7 || timeouts.Database.Port != 6432 {
		t.Fatalf("unexpected config: %+v", timeouts)
	}
}

func TestBindValidatesIndirectNestedStructs(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		m    map[string]any
		want string
	}{
		"pointer": {
			m:    map[string]any{"primary": map[string]any{}},
			want: `missing required field "primary.host"`,
		},
		"slice element": {
			m: map[string]any{"replicas": []any{
				map[string]any{"host": "r0"},
				map[string]any{"port": float64(1)},
			}},
			want: `missing required field "replicas[1].host"`,
		},
		"map value": {
			m: map[string]any{"shards": map[string]any{
				"eu": map[string]any{"host": "eu", "extra": true},
			}},
			want: `unknown field "shards.eu.extra"`,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Bind[clusterConfig](tc.m)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestBindAppliesDefaultsToIndirectNestedStructs(t *testing.T) {
	t.Parallel()

	cfg, err := Bind[clusterConfig](map[string]any{
		"primary":  map[string]any{"host": "p"},
		"replicas": []any{map[string]any{"host": "r0"}},
		"shards":   map[string]any{"eu": map[string]any{"host": "eu", "port": float64(7000)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Primary == nil || cfg.Primary.Port != 5432 {
		t.Fatalf("expected default port on primary, got %+v", cfg.Primary)
	}
	if len(cfg.Replica) != 1 || cfg.Replica[0].Port != 5432 {
		t.Fatalf("expected default port on replica, got %+v", cfg.Replica)
	}
	if cfg.Shards["eu"] == nil || cfg.Shards["eu"].Port != 7000 {
		t.Fatalf("unexpected shard: %+v", cfg.Shards["eu"])
	}
}

func TestBindHandlesRecursiveTypes(t *testing.T) {
	t.Parallel()

	cfg, err := Bind[treeConfig](map[string]any{
		"name": "root",
		"children": []any{
			map[string]any{"name": "leaf"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Children) != 1 || cfg.Children[0].Name != "leaf" {
		t.Fatalf("unexpected tree: %+v", cfg)
	}

	_, err = Bind[treeConfig](map[string]any{
		"name":     "root",
		"children": []any{map[string]any{}},
	})
	if err == nil || !strings.Contains(err.Error(), `missing required field "children[0].name"`) {
		t.Fatalf("expected missing nested name, got %v", err)
	}
}

func TestBindTreatsNullRequiredFieldAsMissing(t *testing.T) {
	t.Parallel()

	_, err := Bind[demoConfig](map[string]any{"param1": nil, "param2": float64(1)})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(err.Error(), `missing required field "param1"`) {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Bind[demoConfig](map[string]any{"param1": "x", "param2": float64(1), "param3": nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Param3 != nil {
		t.Fatalf("expected nil param3, got %q", *cfg.Param3)
	}
}
