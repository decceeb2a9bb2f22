package cmd

import (
	"context"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	"github.com/spf13/cobra"
)

// serveCmd runs the API server and the background jobs until SIGINT or SIGTERM
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mailer API and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bootLog := logger.NewProduction("mailer", Version)
		cfg, err := loadConfig()
		if err != nil {
			bootLog.ErrorCtx(ctx, "failed to load configuration", err)
			return err
		}

		log := newLogger(cfg, "mailer")
		log.InfoContext(ctx, "starting mailer", "version", Version)

		service, err := mailer.NewService(cfg, log, mailer.WithVersion(Version))
		if err != nil {
			log.ErrorCtx(ctx, "failed to create service", err)
			return err
		}

		if err := service.Start(ctx); err != nil {
			log.ErrorCtx(ctx, "failed to start service", err)
			if closeErr := service.Close(); closeErr != nil {
				log.ErrorCtx(ctx, "failed to release resources after startup failure", closeErr)
			}
			return err
		}

		service.WaitForShutdown()
		log.InfoContext(ctx, "main process exiting")
		return nil
	},
}

// sweepCmd reaps expired servers once and exits. Useful from an external cron.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Tear down expired servers once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg, "mailer.sweep")

		service, err := mailer.NewService(cfg, log, mailer.WithoutSignalHandling())
		if err != nil {
			return err
		}
		defer service.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), sweepTimeout)
		defer cancel()

		reaped, err := service.Orchestrator().ExpirySweep(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("reaped %d expired server(s)\n", reaped)
		return nil
	},
}

const sweepTimeout = 15 * time.Minute

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
}
