package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaewoo-dev/datachat/internal/stats"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <session>",
		Short: "Print column statistics for a session's tabular data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				eng := stats.NewEngine(a.store)
				report, err := eng.Compute(ctx, args[0])
				if err != nil {
					return fmt.Errorf("compute stats: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), stats.Summarize(report))
				return nil
			})
		},
	}
	return cmd
}
