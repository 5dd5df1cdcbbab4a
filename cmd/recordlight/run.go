package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/recordlight/internal/container"
	"github.com/garyjia/recordlight/pkg/utils"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the controller until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			logger, err := utils.NewLogger(utils.LoggerConfig{
				Level:      cfg.Logger.Level,
				OutputPath: cfg.Logger.OutputPath,
				Format:     cfg.Logger.Format,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			logger.Info("Starting recordlight",
				zap.String("version", container.Version),
				zap.String("device", cfg.Device.Type),
				zap.String("recorder", cfg.Recorder.Type))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg, logger)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				logger.Error("Startup failed", zap.Error(err))
				return err
			}

			loopErr := make(chan error, 1)
			go func() { loopErr <- c.Wait() }()

			select {
			case <-ctx.Done():
				logger.Info("Shutdown signal received")
			case err := <-loopErr:
				if err != nil {
					logger.Error("Dispatch loop exited", zap.Error(err))
				}
			}

			if err := c.Close(); err != nil {
				return err
			}
			logger.Info("recordlight stopped")
			return nil
		},
	}
}
