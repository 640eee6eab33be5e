package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported configuration sources.
const (
	SourceSecretsManager = "secretsmanager"
	SourceFile           = "file"
)

const (
	envPrefix      = "SECRETCONF_"
	defaultFormat  = "json"
	defaultOutput  = "yaml"
	defaultLevel   = "info"
	defaultTimeout = 30 * time.Second
)

// Settings aggregates runtime settings resolved from multiple sources.
// Precedence: CLI flags > YAML settings > Environment variables > Defaults
type Settings struct {
	Source         string
	SecretID       string
	VersionID      string
	VersionStage   string
	Region         string
	FilePath       string
	Format         string
	Output         string
	LogLevel       string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// yamlSettings represents the YAML settings file structure.
type yamlSettings struct {
	Source    string        `yaml:"source"`
	Secret    yamlSecret    `yaml:"secret"`
	File      string        `yaml:"file"`
	Format    string        `yaml:"format"`
	Output    string        `yaml:"output"`
	LogLevel  string        `yaml:"log_level"`
	Timeout   string        `yaml:"timeout"`
	RateLimit yamlRateLimit `yaml:"rate_limit"`
}

// yamlSecret represents the secret section in YAML.
type yamlSecret struct {
	ID           string `yaml:"id"`
	VersionID    string `yaml:"version_id"`
	VersionStage string `yaml:"version_stage"`
	Region       string `yaml:"region"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	SettingsFile   string
	Source         *string
	SecretID       *string
	VersionID      *string
	VersionStage   *string
	Region         *string
	FilePath       *string
	Format         *string
	Output         *string
	LogLevel       *string
	Timeout        *time.Duration
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load resolves settings from multiple sources with precedence:
// CLI flags > YAML settings > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Settings, error) {
	s := defaultSettings()

	// Environment sits below the YAML file, so it is applied first.
	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}

	if overrides != nil && overrides.SettingsFile != "" {
		yamlCfg, err := loadFromFile(overrides.SettingsFile)
		if err != nil {
			return Settings{}, fmt.Errorf("load YAML settings: %w", err)
		}
		if err := applyYAML(&s, yamlCfg); err != nil {
			return Settings{}, fmt.Errorf("apply YAML settings: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&s, overrides)
	}

	if err := validate(s); err != nil {
		return Settings{}, err
	}

	return s, nil
}

// defaultSettings returns Settings with default values.
func defaultSettings() Settings {
	return Settings{
		Source:   SourceSecretsManager,
		Format:   defaultFormat,
		Output:   defaultOutput,
		LogLevel: defaultLevel,
		Timeout:  defaultTimeout,
	}
}

// loadFromFile loads settings from a YAML file.
func loadFromFile(path string) (*yamlSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlSettings
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAML applies YAML settings on top of s.
func applyYAML(s *Settings, y *yamlSettings) error {
	setString(&s.Source, y.Source)
	setString(&s.SecretID, y.Secret.ID)
	setString(&s.VersionID, y.Secret.VersionID)
	setString(&s.VersionStage, y.Secret.VersionStage)
	setString(&s.Region, y.Secret.Region)
	setString(&s.FilePath, y.File)
	setString(&s.Format, y.Format)
	setString(&s.Output, y.Output)
	setString(&s.LogLevel, y.LogLevel)

	if y.Timeout != "" {
		d, err := time.ParseDuration(y.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		s.Timeout = d
	}

	if y.RateLimit.RPS != nil {
		s.RateLimitRPS = *y.RateLimit.RPS
	}
	if y.RateLimit.Burst != nil {
		s.RateLimitBurst = *y.RateLimit.Burst
	}
	return nil
}

// applyEnv applies environment variable settings. AWS_REGION is honoured so
// the usual AWS tooling conventions keep working.
func applyEnv(s *Settings) error {
	setString(&s.Region, env("AWS_REGION"))
	setString(&s.Source, env(envPrefix+"SOURCE"))
	setString(&s.SecretID, env(envPrefix+"SECRET_ID"))
	setString(&s.VersionID, env(envPrefix+"VERSION_ID"))
	setString(&s.VersionStage, env(envPrefix+"VERSION_STAGE"))
	setString(&s.Region, env(envPrefix+"REGION"))
	setString(&s.FilePath, env(envPrefix+"FILE"))
	setString(&s.Format, env(envPrefix+"FORMAT"))
	setString(&s.Output, env(envPrefix+"OUTPUT"))
	setString(&s.LogLevel, env(envPrefix+"LOG_LEVEL"))

	if raw := env(envPrefix + "TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", envPrefix, err)
		}
		s.Timeout = d
	}

	if raw := env(envPrefix + "RATE_LIMIT_RPS"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_RPS: %w", envPrefix, err)
		}
		s.RateLimitRPS = value
	}

	if raw := env(envPrefix + "RATE_LIMIT_BURST"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_BURST: %w", envPrefix, err)
		}
		s.RateLimitBurst = value
	}
	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(s *Settings, o *CLIOverrides) {
	setPtr(&s.Source, o.Source)
	setPtr(&s.SecretID, o.SecretID)
	setPtr(&s.VersionID, o.VersionID)
	setPtr(&s.VersionStage, o.VersionStage)
	setPtr(&s.Region, o.Region)
	setPtr(&s.FilePath, o.FilePath)
	setPtr(&s.Format, o.Format)
	setPtr(&s.Output, o.Output)
	setPtr(&s.LogLevel, o.LogLevel)

	if o.Timeout != nil {
		s.Timeout = *o.Timeout
	}
	if o.RateLimitRPS != nil && *o.RateLimitRPS >= 0 {
		s.RateLimitRPS = *o.RateLimitRPS
	}
	if o.RateLimitBurst != nil && *o.RateLimitBurst >= 0 {
		s.RateLimitBurst = *o.RateLimitBurst
	}
}

// validate validates the final settings.
func validate(s Settings) error {
	switch s.Source {
	case SourceSecretsManager:
		if s.SecretID == "" {
			return fmt.Errorf("secret id is required for source %q", s.Source)
		}
	case SourceFile:
		if s.FilePath == "" {
			return fmt.Errorf("file path is required for source %q", s.Source)
		}
	default:
		return fmt.Errorf("unknown source %q", s.Source)
	}

	switch strings.ToLower(s.Format) {
	case "json", "yaml", "yml":
	default:
		return fmt.Errorf("unsupported format %q", s.Format)
	}

	switch strings.ToLower(s.Output) {
	case "json", "yaml":
	default:
		return fmt.Errorf("unsupported output %q", s.Output)
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}
	if s.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if s.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setPtr(dst *string, value *string) {
	if value != nil && *value != "" {
		*dst = *value
	}
}
