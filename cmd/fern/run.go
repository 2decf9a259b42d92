package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/watermark"
)

func newRunCmd(c *cli) *cobra.Command {
	var kind, since string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync invocation and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := models.ParseKind(kind)
			if err != nil {
				return c.fail(err, "Invalid --kind")
			}
			var override *time.Time
			if since != "" {
				t, err := watermark.ParseOverride(since)
				if err != nil {
					return c.fail(err, "Invalid --since")
				}
				override = &t
			}

			ctx := cmd.Context()
			a := app.New(c.cfg, c.logger)
			if err := a.Start(ctx); err != nil {
				return c.fail(err, "Failed to start dependencies")
			}
			defer func() {
				if err := a.Stop(ctx); err != nil {
					c.logger.WithError(err).Warn("Failed to stop dependencies")
				}
			}()

			report, err := a.Syncer.Run(ctx, k, override)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
			if err != nil {
				return c.fail(err, "Sync failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "entity kind to sync: movies, persons or genres")
	cmd.Flags().StringVar(&since, "since", "", "start from this time instead of the stored watermark (YYYY-MM-DD-HH:MM, UTC)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}
