package sqlgen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaewoo-dev/datachat/internal/llm"
)

type scriptedClient struct {
	reply string
	err   error
	// last system message, for prompt assertions
	system string
}

func (c *scriptedClient) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	for _, m := range msgs {
		if m.Role == "system" {
			c.system = m.Content
		}
	}
	return c.reply, c.err
}

func TestGenerator_RunSuccess(t *testing.T) {
	client := &scriptedClient{reply: "```sql\nSELECT name FROM items ORDER BY id\n```"}
	executor := NewExecutor(seedDB(t), time.Second)
	g := NewGenerator(client, executor, 50)

	o := g.Run(context.Background(), "what items are there?", "s1")
	require.True(t, o.OK(), "outcome: %+v", o)
	assert.Equal(t, "SELECT name FROM items ORDER BY id LIMIT 50", o.Statement)
	assert.Equal(t, 2, o.RowCount)
}

func TestGenerator_RunRejectsUnsafeOutput(t *testing.T) {
	client := &scriptedClient{reply: "DROP TABLE items; SELECT 1"}
	g := NewGenerator(client, NewExecutor(seedDB(t), time.Second), 50)

	o := g.Run(context.Background(), "delete everything", "s1")
	require.Equal(t, OutcomeRejected, o.Kind)
	assert.Equal(t, ReasonNoSelect, o.Reason)
}

func TestGenerator_GenerationFailure(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	g := NewGenerator(client, NewExecutor(seedDB(t), time.Second), 50)

	o := g.Run(context.Background(), "anything", "s1")
	require.Equal(t, OutcomeExecutionError, o.Kind)
	assert.Equal(t, "generation", o.ErrClass)
}

func TestGenerator_PromptPinsSession(t *testing.T) {
	client := &scriptedClient{reply: "SELECT 1"}
	g := NewGenerator(client, NewExecutor(seedDB(t), time.Second), 50)

	g.Run(context.Background(), "q", "session-42")
	assert.Contains(t, client.system, "session_id = 'session-42'")

	// Quotes in the id cannot break the prompt's literal.
	g.Run(context.Background(), "q", "it's")
	assert.Contains(t, client.system, "session_id = 'it''s'")
}

func TestSummarize(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Empty(t, Summarize(nil))
	})

	t.Run("failure", func(t *testing.T) {
		o := rejectedOutcome("", ReasonNoSelect)
		assert.Equal(t, "SQL error: rejected: no_select_statement_generated", Summarize(o))
	})

	t.Run("success caps at five rows", func(t *testing.T) {
		rows := [][]any{{1}, {2}, {3}, {4}, {5}, {6}, {7}}
		o := successOutcome("SELECT n FROM t", []string{"n"}, rows)
		got := Summarize(o)
		assert.Contains(t, got, "columns=[n]")
		assert.Contains(t, got, "[5]")
		assert.NotContains(t, got, "[6]")
	})
}
