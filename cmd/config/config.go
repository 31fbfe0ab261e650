// Package config implements the command that prints the effective settings.
package config

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/vaultd/internal/conf"
)

// Command creates the config command.
func Command(load func() (*conf.Settings, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := load()
			if err != nil {
				return err
			}
			data, err := settings.Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
