package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List ingestion sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				sessions, err := a.store.ListSessions(ctx)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
					return nil
				}
				for _, id := range sessions {
					files, err := a.store.ListFiles(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%d files)\n", id, len(files))
					for _, f := range files {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f.Filename)
					}
				}
				return nil
			})
		},
	}
	return cmd
}
