package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaewoo-dev/datachat/internal/profile"
)

func newColumnsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns <session>",
		Short: "List the ingested columns per file for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				colsMap, order, err := profile.Columns(ctx, a.store, args[0])
				if err != nil {
					return fmt.Errorf("list columns: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), profile.SummarizeColumns(colsMap, order))
				return nil
			})
		},
	}
	return cmd
}
