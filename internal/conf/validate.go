// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tphakala/vaultd/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. Level names are
// normalised to lower case in place.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateVaultSettings(&settings.Vault); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLoggingSettings(&settings.Logging); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateTelemetrySettings(&settings.Telemetry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateVaultSettings(settings *VaultSettings) error {
	settings.Root = strings.TrimSpace(settings.Root)
	if settings.Root == "" {
		return fmt.Errorf("vault root is required: set WORK_FOLDER or vault.root")
	}
	return nil
}

// validateWebServerSettings validates the listener settings
func validateWebServerSettings(settings *WebServerSettings) error {
	var errs []string

	if err := validatePort(settings.Port); err != nil {
		errs = append(errs, err.Error())
	}

	if settings.BodyLimit == "" {
		errs = append(errs, "body limit must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("webserver settings errors: %v", errs)
	}
	return nil
}

func validateLoggingSettings(settings *LoggingSettings) error {
	var errs []string

	settings.Level = strings.ToLower(strings.TrimSpace(settings.Level))
	if !logger.ValidLevel(settings.Level) {
		errs = append(errs, fmt.Sprintf("invalid log level %q", settings.Level))
	}

	for module, level := range settings.ModuleLevels {
		if !logger.ValidLevel(strings.ToLower(level)) {
			errs = append(errs, fmt.Sprintf("invalid log level %q for module %s", level, module))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("logging settings errors: %v", errs)
	}
	return nil
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("telemetry enabled but no DSN configured")
	}
	return nil
}

// validatePort checks that port is a number in 1-65535
func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q: must be numeric", port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", n)
	}
	return nil
}
