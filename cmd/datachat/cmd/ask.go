package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaewoo-dev/datachat/internal/intent"
	"github.com/jaewoo-dev/datachat/internal/orchestrator"
)

func newAskCmd() *cobra.Command {
	var (
		sessionID  string
		chatID     string
		mode       string
		topK       int
		provenance bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against an ingested session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				override := intent.Mode(mode)
				if mode != "" && !override.Valid() {
					return fmt.Errorf("invalid mode %q (want sql, hybrid, both, stats, columns or none)", mode)
				}

				resp, err := a.orch.Run(ctx, orchestrator.State{
					Question:  args[0],
					SessionID: sessionID,
					ChatID:    chatID,
					TopK:      topK,
					Override:  override,
				})
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
				if provenance {
					fmt.Fprintf(cmd.OutOrStdout(), "\nintent: %s\n", resp.ResolvedIntent)
					for _, p := range resp.Provenance {
						fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", p.Source, firstLine(p.Text))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session to query")
	cmd.Flags().StringVar(&chatID, "chat", "", "Chat to record the exchange in")
	cmd.Flags().StringVar(&mode, "mode", "", "Force the retrieval mode instead of classifying")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of documents to retrieve (default from config)")
	cmd.Flags().BoolVar(&provenance, "provenance", false, "Print the evidence behind the answer")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
