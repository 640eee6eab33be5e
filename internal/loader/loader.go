package loader

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/secretconf/internal/confload"
)

// Supported format names.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Option configures a loader.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used to report parse failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ForFormat returns the loader registered for name ("json", "yaml" or "yml").
func ForFormat(name string, opts ...Option) (confload.Loader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FormatJSON:
		return NewJSON(opts...), nil
	case FormatYAML, "yml":
		return NewYAML(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", name)
	}
}

func fail(logger *zap.Logger, format, msg string, err error) error {
	logger.Error("failed to load config", zap.String("format", format), zap.String("reason", msg))
	return &confload.LoaderError{Format: format, Msg: msg, Err: err}
}
