package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaewoo-dev/datachat/internal/llm"
)

// Narrate produces a concise natural-language answer from a SQL outcome.
// Failures are rendered directly without a model call; only real result sets
// are worth a completion.
func Narrate(ctx context.Context, client llm.Client, question string, outcome *Outcome, dbContext string) (string, error) {
	if outcome == nil || outcome.Failed() {
		errText := "unknown"
		if outcome != nil {
			errText = outcome.ErrorText()
		}
		return fmt.Sprintf("SQL returned an error or empty result: %s", errText), nil
	}

	sample := outcome.Rows
	if len(sample) > 10 {
		sample = sample[:10]
	}

	var sections []string
	if dbContext != "" {
		sections = append(sections, fmt.Sprintf("[DB]\n%s", dbContext))
	}
	sections = append(sections, fmt.Sprintf(
		"[SQL_RESULT]\ncolumns=%v\nrows(sample)=%v\nrow_count=%d",
		outcome.Columns, sample, outcome.RowCount))
	sections = append(sections, fmt.Sprintf("Question:\n%s", question))

	return client.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You are a precise analyst. Write a concise answer using the SQL result. " +
			"Summarize key findings, include simple calculations if helpful, and reference columns or files when relevant."},
		{Role: "user", Content: strings.Join(sections, "\n\n")},
	})
}
