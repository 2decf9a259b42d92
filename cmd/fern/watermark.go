package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/watermark"
)

func newWatermarkCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Inspect or reset stored sync positions",
	}

	var stream string
	get := &cobra.Command{
		Use:   "get",
		Short: "Print stored watermarks, or one with --stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a := app.NewWatermarks(c.cfg, c.logger)
			if err := a.Start(ctx); err != nil {
				return c.fail(err, "Failed to connect to Redis")
			}
			defer a.Stop(ctx)

			if stream != "" {
				t, ok, err := a.Watermarks.Get(ctx, stream)
				if err != nil {
					return c.fail(err, "Failed to read watermark")
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t(none)\n", stream)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", stream, watermark.Format(t))
				return nil
			}

			all, err := a.Watermarks.List(ctx)
			if err != nil {
				return c.fail(err, "Failed to list watermarks")
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, watermark.Format(all[k]))
			}
			return nil
		},
	}
	get.Flags().StringVar(&stream, "stream", "", "stream key, e.g. movies or movies:genres")

	var resetStream string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete a stored watermark so the next run of that stream starts from scratch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !watermark.IsKey(resetStream) {
				return c.fail(fmt.Errorf("unknown stream %q, expected one of %v", resetStream, watermark.Keys), "Invalid --stream")
			}
			ctx := cmd.Context()
			a := app.NewWatermarks(c.cfg, c.logger)
			if err := a.Start(ctx); err != nil {
				return c.fail(err, "Failed to connect to Redis")
			}
			defer a.Stop(ctx)

			if err := a.Watermarks.Delete(ctx, resetStream); err != nil {
				return c.fail(err, "Failed to reset watermark")
			}
			c.logger.WithField("stream", resetStream).Warn("Watermark reset")
			return nil
		},
	}
	reset.Flags().StringVar(&resetStream, "stream", "", "stream key to reset")
	_ = reset.MarkFlagRequired("stream")

	cmd.AddCommand(get, reset)
	return cmd
}
