package loader

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// YAML parses configuration text as a YAML mapping.
type YAML struct {
	logger *zap.Logger
}

// NewYAML returns a YAML loader.
func NewYAML(opts ...Option) *YAML {
	o := newOptions(opts)
	return &YAML{logger: o.logger}
}

// Load decodes the first YAML document in raw into a mapping. Nested mappings
// must have string keys.
func (l *YAML) Load(raw string) (map[string]any, error) {
	dec := yaml.NewDecoder(strings.NewReader(raw))

	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fail(l.logger, FormatYAML, "empty input", err)
		}
		return nil, fail(l.logger, FormatYAML, err.Error(), err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fail(l.logger, FormatYAML, fmt.Sprintf("top-level value must be a mapping (line %d)", root.Line), nil)
	}

	var m map[string]any
	if err := root.Decode(&m); err != nil {
		return nil, fail(l.logger, FormatYAML, err.Error(), err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
