package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/secretconf/internal/config"
	"github.com/eugenenazirov/secretconf/internal/confload"
	"github.com/eugenenazirov/secretconf/internal/loader"
	"github.com/eugenenazirov/secretconf/internal/reader"
)

// Demo is the configuration shape loaded and printed by the command.
type Demo struct {
	confload.Marker `yaml:"-" json:"-"`

	Param1 string  `config:"param1" yaml:"param1" json:"param1"`
	Param2 int     `config:"param2" yaml:"param2" json:"param2"`
	Param3 *string `config:"param3" yaml:"param3" json:"param3"`
}

// App encapsulates the configured reader, loader and factory.
type App struct {
	settings config.Settings
	reader   confload.Reader
	loader   confload.Loader
	factory  *confload.Factory
	logger   *zap.Logger
}

// Option configures App construction.
type Option func(*appOptions)

type appOptions struct {
	secretsClient reader.SecretsManagerAPI
}

// WithSecretsClient replaces the AWS Secrets Manager client, primarily for tests.
func WithSecretsClient(client reader.SecretsManagerAPI) Option {
	return func(o *appOptions) {
		o.secretsClient = client
	}
}

// New initializes the application from the provided settings.
func New(ctx context.Context, s config.Settings, logger *zap.Logger, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	r, err := newReader(ctx, s, logger, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	l, err := loader.ForFormat(s.Format, loader.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create loader: %w", err)
	}

	return &App{
		settings: s,
		reader:   r,
		loader:   l,
		factory:  confload.NewFactory(confload.WithLogger(logger)),
		logger:   logger,
	}, nil
}

func newReader(ctx context.Context, s config.Settings, logger *zap.Logger, o appOptions) (confload.Reader, error) {
	switch s.Source {
	case config.SourceFile:
		return reader.NewFile(s.FilePath, reader.WithLogger(logger)), nil
	case config.SourceSecretsManager:
		input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(s.SecretID)}
		if s.VersionID != "" {
			input.VersionId = aws.String(s.VersionID)
		}
		if s.VersionStage != "" {
			input.VersionStage = aws.String(s.VersionStage)
		}

		readerOpts := []reader.Option{
			reader.WithLogger(logger),
			reader.WithRegion(s.Region),
			reader.WithThrottle(reader.NewThrottle(s.RateLimitRPS, s.RateLimitBurst)),
		}
		if o.secretsClient != nil {
			readerOpts = append(readerOpts, reader.WithClient(o.secretsClient))
		}
		return reader.NewSecretsManager(ctx, input, readerOpts...)
	default:
		return nil, fmt.Errorf("unknown source %q", s.Source)
	}
}

// Load returns the typed configuration. Repeated calls return the same
// instance.
func (a *App) Load(ctx context.Context) (*Demo, error) {
	return confload.Load[Demo](ctx, a.factory, a.reader, a.loader)
}

// Run loads the configuration and writes it to w in the configured output
// format.
func (a *App) Run(ctx context.Context, w io.Writer) error {
	if a.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.settings.Timeout)
		defer cancel()
	}

	cfg, err := a.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a.logger.Info("config loaded",
		zap.String("source", a.settings.Source),
		zap.String("format", a.settings.Format),
	)
	return Render(w, a.settings.Output, cfg)
}

// Render writes v to w as YAML or JSON.
func Render(w io.Writer, output string, v any) error {
	switch strings.ToLower(output) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output %q", output)
	}
}
