package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest CSV, text or markdown files into a session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if sessionID == "" {
					sessionID = uuid.NewString()
				}
				for _, path := range args {
					res, err := a.pipeline.IngestFile(ctx, sessionID, path)
					if err != nil {
						return fmt.Errorf("ingest %s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks", res.Filename, res.ChunkCount)
					if res.Columns > 0 {
						fmt.Fprintf(cmd.OutOrStdout(), " (%d rows, %d columns)", res.RowCount, res.Columns)
					}
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session: %s\n", sessionID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session to ingest into (default: new session)")
	return cmd
}
