// env.go - Environment variable configuration and validation for vaultd
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/vaultd/internal/logger"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"vault.root", "WORK_FOLDER", nil},

		{"webserver.host", "HOST", nil},
		{"webserver.port", "PORT", validateEnvPort},
		{"webserver.bodylimit", "VAULTD_BODY_LIMIT", nil},
		{"webserver.allowedorigins", "VAULTD_ALLOWED_ORIGINS", nil},

		{"logging.level", "LOG_LEVEL", validateEnvLogLevel},
		{"logging.file", "VAULTD_LOG_FILE", nil},

		{"metrics.enabled", "VAULTD_METRICS", validateEnvBool},
		{"telemetry.enabled", "VAULTD_TELEMETRY", validateEnvBool},
		{"telemetry.dsn", "SENTRY_DSN", nil},

		{"debug", "VAULTD_DEBUG", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value: %s", value)
	}
	return nil
}

// validateEnvPort validates a TCP port number
func validateEnvPort(value string) error {
	return validatePort(strings.TrimSpace(value))
}

// validateEnvLogLevel validates a log level name
func validateEnvLogLevel(value string) error {
	level := strings.ToLower(strings.TrimSpace(value))
	if !logger.ValidLevel(level) {
		return fmt.Errorf("invalid log level: %s", value)
	}
	return nil
}
