package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/server"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/scheduler"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API and run scheduled syncs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			kinds, err := c.cfg.Kinds()
			if err != nil {
				return c.fail(err, "Invalid scheduler kinds")
			}
			a := app.New(c.cfg, c.logger)
			if err := a.Start(ctx); err != nil {
				return c.fail(err, "Failed to start dependencies")
			}
			defer func() {
				if err := a.Stop(context.WithoutCancel(ctx)); err != nil {
					c.logger.WithError(err).Warn("Failed to stop dependencies")
				}
			}()

			deps := server.Deps{
				Sync:       a.Syncer,
				Watermarks: a.Watermarks,
				Health:     a.HealthChecker(version),
			}
			if c.cfg.AuthEnabled {
				verifier, err := middleware.NewOIDCVerifier(ctx, c.cfg.AuthIssuerURL, c.cfg.AuthClientID)
				if err != nil {
					return c.fail(err, "Failed to discover OIDC provider")
				}
				deps.Verifier = verifier
			}
			srv := server.New(c.cfg, deps, c.logger)

			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error {
				return srv.Run(groupCtx)
			})
			if c.cfg.SchedulerEnabled {
				sched := scheduler.NewScheduler(a.Syncer, scheduler.Config{
					PollInterval: c.cfg.SchedulerPollInterval,
					Kinds:        kinds,
				}, c.logger)
				group.Go(func() error {
					if err := sched.Start(groupCtx); err != nil {
						return err
					}
					<-groupCtx.Done()
					// a running sync finishes its batch budget before the process exits
					stopCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), 2*c.cfg.SinkRetryMaxElapsed+time.Minute)
					defer cancel()
					return sched.Stop(stopCtx)
				})
			}

			deps.Health.SetReady(true)
			c.logger.WithContext(ctx).Info("fern is serving")

			if err := group.Wait(); err != nil {
				return c.fail(err, "Server stopped with error")
			}
			c.logger.Info("fern stopped")
			return nil
		},
	}
}
