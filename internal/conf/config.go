// Package conf provides configuration management for vaultd.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/vaultd/internal/errors"
	"github.com/tphakala/vaultd/internal/logger"
)

const osWindows = "windows"

// VaultSettings points at the directory every file operation is confined to.
type VaultSettings struct {
	Root string `mapstructure:"root" yaml:"root"` // absolute or relative path to the vault root
}

// WebServerSettings contains HTTP listener settings.
type WebServerSettings struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           string   `mapstructure:"port" yaml:"port"`
	BodyLimit      string   `mapstructure:"bodylimit" yaml:"bodylimit"`           // e.g. "10M"
	AllowedOrigins []string `mapstructure:"allowedorigins" yaml:"allowedorigins"` // CORS origins
}

// LoggingSettings controls log verbosity and the optional JSON log file.
type LoggingSettings struct {
	Level        string            `mapstructure:"level" yaml:"level"`
	File         string            `mapstructure:"file" yaml:"file"`
	ModuleLevels map[string]string `mapstructure:"modulelevels" yaml:"modulelevels,omitempty"`
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// TelemetrySettings configures Sentry error reporting.
type TelemetrySettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// Settings is the complete runtime configuration.
type Settings struct {
	Debug     bool              `mapstructure:"debug" yaml:"debug"`
	Vault     VaultSettings     `mapstructure:"vault" yaml:"vault"`
	WebServer WebServerSettings `mapstructure:"webserver" yaml:"webserver"`
	Logging   LoggingSettings   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsSettings   `mapstructure:"metrics" yaml:"metrics"`
	Telemetry TelemetrySettings `mapstructure:"telemetry" yaml:"telemetry"`

	Version   string `mapstructure:"-" yaml:"-"` // set from build info, not config
	BuildDate string `mapstructure:"-" yaml:"-"`
}

// New returns a viper instance with defaults and environment bindings
// applied. Callers may bind CLI flags to it before calling Load.
func New() (*viper.Viper, error) {
	v := viper.New()
	setDefaultConfig(v)
	if err := bindEnvVars(v); err != nil {
		return v, err
	}
	return v, nil
}

// Load reads an optional config file into v, unmarshals the result and
// validates it. An empty configFile searches the default config paths; a
// missing file there is not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return nil, err
		}
		for _, path := range configPaths {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Context("operation", "read-config").
				Context("config_file", configFile).
				Build()
		}
		GetLogger().Debug("no config file found, using defaults and environment")
	} else {
		GetLogger().Debug("config file loaded", logger.String("path", v.ConfigFileUsed()))
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-config").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	if runtime.GOOS == osWindows {
		return []string{
			".",
			filepath.Join(homeDir, "AppData", "Roaming", "vaultd"),
		}, nil
	}

	return []string{
		".",
		filepath.Join(homeDir, ".config", "vaultd"),
		"/etc/vaultd",
	}, nil
}

// LoggingConfig converts the settings into the central logger configuration.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Logging.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}

	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
		ModuleLevels: s.Logging.ModuleLevels,
	}
	if s.Logging.File != "" {
		cfg.FileOutput = &logger.FileOutput{
			Enabled: true,
			Path:    s.Logging.File,
			Level:   level,
		}
	}
	return cfg
}

// Dump renders the settings as YAML. The telemetry DSN is masked.
func (s *Settings) Dump() ([]byte, error) {
	out := *s
	if out.Telemetry.DSN != "" {
		out.Telemetry.DSN = "[REDACTED]"
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings: %w", err)
	}
	return data, nil
}
