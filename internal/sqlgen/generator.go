package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaewoo-dev/datachat/internal/llm"
)

// Generator produces and runs session-scoped SELECT statements.
type Generator struct {
	client   llm.Client
	executor *Executor
	limit    int
}

// NewGenerator wires the generation client and executor. limit is the row
// cap injected into statements lacking one.
func NewGenerator(client llm.Client, executor *Executor, limit int) *Generator {
	if limit <= 0 {
		limit = 100
	}
	return &Generator{client: client, executor: executor, limit: limit}
}

// systemPrompt describes the queryable schema and pins the session filter.
// Single quotes in the session id are doubled so the prompt's literal cannot
// be broken out of.
func systemPrompt(sessionID string) string {
	escaped := strings.ReplaceAll(sessionID, "'", "''")
	return fmt.Sprintf(
		"You write only safe SQLite SELECT queries for tables: "+
			"schema_columns(session_id,file_id,col_name,inferred_type,position), "+
			"files(id,session_id,filename), "+
			"rows(session_id,file_id,row_index,data_json,chunk_id), "+
			"row_kv(session_id,file_id,row_index,col_name,value_text), "+
			"fts_rows(text,session_id,file_id,row_index,chunk_id). "+
			"Constraints: Use WHERE session_id = '%s'. No PRAGMA/ATTACH/DDL/DML. "+
			"Return only SQL, no prose.", escaped)
}

// Generate asks the model for a statement and validates it. The returned
// outcome is nil when validation passed.
func (g *Generator) Generate(ctx context.Context, question, sessionID string) (string, *Outcome) {
	raw, err := g.client.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt(sessionID)},
		{Role: "user", Content: question},
	})
	if err != nil {
		return "", executionErrorOutcome("", "generation", err.Error())
	}

	stmt, rejected := Validate(raw)
	if rejected != nil {
		return "", rejected
	}
	return InjectLimit(stmt, g.limit), nil
}

// Run generates, validates and executes in one step.
func (g *Generator) Run(ctx context.Context, question, sessionID string) *Outcome {
	stmt, failed := g.Generate(ctx, question, sessionID)
	if failed != nil {
		return failed
	}
	return g.executor.Execute(ctx, stmt)
}

// Summarize renders a compact plain-text view of the outcome, used as raw
// evidence in the final answer context.
func Summarize(o *Outcome) string {
	if o == nil {
		return ""
	}
	if o.Failed() {
		return fmt.Sprintf("SQL error: %s", o.ErrorText())
	}
	head := o.Rows
	if len(head) > 5 {
		head = head[:5]
	}
	return fmt.Sprintf("SQL Rows (showing up to 5): columns=%v\n%v", o.Columns, head)
}
