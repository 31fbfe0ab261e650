// Package cmd wires the vaultd command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/vaultd/cmd/config"
	"github.com/tphakala/vaultd/cmd/serve"
	"github.com/tphakala/vaultd/cmd/version"
	"github.com/tphakala/vaultd/internal/buildinfo"
	"github.com/tphakala/vaultd/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	v, envErr := conf.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "vaultd",
		Short:         "HTTP file manager for a notes vault",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Bad environment values are fatal for every command but version
			if envErr != nil && cmd.Name() != "version" {
				return envErr
			}
			return nil
		},
	}

	if err := setupFlags(rootCmd, v, &configFile); err != nil {
		panic(err) // flag names are static
	}

	load := func() (*conf.Settings, error) {
		settings, err := conf.Load(v, configFile)
		if err != nil {
			return nil, err
		}
		settings.Version = build.GetVersion()
		settings.BuildDate = build.GetBuildDate()
		return settings, nil
	}

	serveCmd := serve.Command(load)
	rootCmd.AddCommand(
		serveCmd,
		configcmd.Command(load),
		version.Command(build),
	)

	// Without a subcommand vaultd serves
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
// and binds them to their configuration keys.
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config file (default: search ., ~/.config/vaultd, /etc/vaultd)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.StringP("root", "r", "", "Vault root directory (env WORK_FOLDER)")
	flags.String("host", conf.DefaultHost, "Address to bind to (env HOST)")
	flags.StringP("port", "p", conf.DefaultPort, "Port to listen on (env PORT)")
	flags.String("log-level", conf.DefaultLogLevel, "Log level: trace, debug, info, warn, error (env LOG_LEVEL)")

	bindings := map[string]string{
		"debug":          "debug",
		"vault.root":     "root",
		"webserver.host": "host",
		"webserver.port": "port",
		"logging.level":  "log-level",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	return nil
}
