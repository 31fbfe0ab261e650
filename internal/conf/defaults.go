package conf

import "github.com/spf13/viper"

// Default values for settings that have one. vault.root has no default.
const (
	DefaultHost      = "0.0.0.0"
	DefaultPort      = "3000"
	DefaultBodyLimit = "10M"
	DefaultLogLevel  = "info"
)

// setDefaultConfig sets default values for every configuration parameter.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("vault.root", "")

	v.SetDefault("webserver.host", DefaultHost)
	v.SetDefault("webserver.port", DefaultPort)
	v.SetDefault("webserver.bodylimit", DefaultBodyLimit)
	v.SetDefault("webserver.allowedorigins", []string{"*"})

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
}
