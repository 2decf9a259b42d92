package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type cli struct {
	envFile string

	cfg      *config.Config
	logger   ectologger.Logger
	zap      *zap.Logger
	shutdown func(context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "fern",
		Short:         "Keep the movie search indices in sync with the catalog database",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.close(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "optional dotenv file read before the environment")

	root.AddCommand(newRunCmd(c), newServeCmd(c), newWatermarkCmd(c))
	return root
}

func (c *cli) init(ctx context.Context) error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logger, zapLogger, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	shutdown, err := tracing.Setup(ctx, cfg.AppName, cfg.OTLP())
	if err != nil {
		logger.WithError(err).Error("Failed to set up tracing")
		return err
	}

	c.cfg, c.logger, c.zap, c.shutdown = cfg, logger, zapLogger, shutdown
	return nil
}

func (c *cli) close(ctx context.Context) error {
	if c.shutdown != nil {
		if err := c.shutdown(context.WithoutCancel(ctx)); err != nil {
			c.logger.WithError(err).Warn("Failed to flush traces")
		}
	}
	if c.zap != nil {
		_ = c.zap.Sync()
	}
	return nil
}

// fail logs err before cobra returns it; errors are silenced at the root.
func (c *cli) fail(err error, msg string) error {
	c.logger.WithError(err).Error(msg)
	_ = c.close(context.Background())
	return err
}
