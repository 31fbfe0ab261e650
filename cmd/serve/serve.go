// Package serve implements the command that runs the HTTP server.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/vaultd/internal/api"
	"github.com/tphakala/vaultd/internal/conf"
	"github.com/tphakala/vaultd/internal/logger"
	"github.com/tphakala/vaultd/internal/observability"
	"github.com/tphakala/vaultd/internal/securefs"
	"github.com/tphakala/vaultd/internal/telemetry"
	"github.com/tphakala/vaultd/internal/vault"
)

// Command creates the serve command. load is called when the command runs so
// flags and environment are already parsed.
func Command(load func() (*conf.Settings, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the file API",
		Long:  "Start the HTTP server exposing read, write, move and delete operations on the vault.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return Run(ctx, settings)
		},
	}
}

// Run starts every component and serves until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings) error {
	cl, err := logger.NewCentralLogger(settings.LoggingConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(cl)
	defer func() {
		_ = cl.Flush()
		_ = cl.Close()
	}()

	log := cl.Module("main")

	if err := telemetry.InitSentry(settings); err != nil {
		log.Warn("telemetry unavailable", logger.Error(err))
	}
	defer telemetry.Flush()

	sfs, err := securefs.New(settings.Vault.Root)
	if err != nil {
		log.Error("cannot open vault root", logger.String("root", settings.Vault.Root), logger.Error(err))
		return err
	}
	defer func() {
		if err := sfs.Close(); err != nil {
			log.Warn("failed to close vault root", logger.Error(err))
		}
	}()

	var metrics *observability.Metrics
	vaultOpts := []vault.Option{vault.WithLogger(cl.Module("vault"))}
	if settings.Metrics.Enabled {
		metrics, err = observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		vaultOpts = append(vaultOpts, vault.WithMetrics(metrics.Vault))
	}

	svc := vault.NewService(sfs, vaultOpts...)

	server, err := api.New(settings, svc,
		api.WithLogger(cl.Module("api")),
		api.WithMetrics(metrics))
	if err != nil {
		return err
	}

	log.Info("vaultd starting",
		logger.String("version", settings.Version),
		logger.String("root", sfs.BaseDir()))

	return server.Run(ctx)
}
