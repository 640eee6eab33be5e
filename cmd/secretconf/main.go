package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/secretconf/internal/application"
	"github.com/eugenenazirov/secretconf/internal/config"
	"github.com/eugenenazirov/secretconf/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "secretconf: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	kingpinApp := kingpin.New("secretconf", "Loads a typed configuration from AWS Secrets Manager or a local file and prints it")
	settingsFile := kingpinApp.Flag("config", "Path to YAML settings file").String()
	source := kingpinApp.Flag("source", "Configuration source (secretsmanager, file)").String()
	secretID := kingpinApp.Flag("secret-id", "Secrets Manager secret name or ARN").String()
	versionID := kingpinApp.Flag("version-id", "Secret version id").String()
	versionStage := kingpinApp.Flag("version-stage", "Secret version stage, e.g. AWSCURRENT").String()
	region := kingpinApp.Flag("region", "AWS region").String()
	filePath := kingpinApp.Flag("file", "Path to a local configuration file when --source=file").String()
	format := kingpinApp.Flag("format", "Configuration text format (json, yaml)").String()
	output := kingpinApp.Flag("output", "Output format (yaml, json)").Short('o').String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	timeout := kingpinApp.Flag("timeout", "Overall timeout for loading the configuration").Duration()
	rateLimitRPS := kingpinApp.Flag("rate-limit-rps", "Secrets Manager requests per second (set 0 to disable)").Default("-1").Float64()
	rateLimitBurst := kingpinApp.Flag("rate-limit-burst", "Burst capacity for Secrets Manager requests").Default("-1").Int()

	if _, err := kingpinApp.Parse(args); err != nil {
		return err
	}

	overrides := &config.CLIOverrides{
		SettingsFile:   *settingsFile,
		Source:         source,
		SecretID:       secretID,
		VersionID:      versionID,
		VersionStage:   versionStage,
		Region:         region,
		FilePath:       filePath,
		Format:         format,
		Output:         output,
		LogLevel:       logLevel,
		RateLimitRPS:   rateLimitRPS,
		RateLimitBurst: rateLimitBurst,
	}
	if *timeout > 0 {
		overrides.Timeout = timeout
	}

	settings, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(ctx, settings, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return err
	}

	return app.Run(ctx, stdout)
}
