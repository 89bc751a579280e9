package sqlgen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultExecTimeout is the hard wall-clock budget for one statement.
const DefaultExecTimeout = 5 * time.Second

// Executor runs validated statements against the ingestion database. Each
// execution opens its own connection so a runaway query cannot poison the
// store's pool, and prefers a read-only open as defense in depth behind the
// keyword screen.
type Executor struct {
	dbPath  string
	timeout time.Duration

	// SupportsReadOnly records whether the read-only open succeeded at
	// least once. When false the executor falls back to best-effort
	// PRAGMA query_only.
	SupportsReadOnly bool
}

// NewExecutor creates an executor over the database at dbPath.
func NewExecutor(dbPath string, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return &Executor{dbPath: dbPath, timeout: timeout, SupportsReadOnly: true}
}

// Execute runs one validated statement and returns the tagged outcome. It
// never returns an error: every failure mode maps to an Outcome variant.
func (e *Executor) Execute(ctx context.Context, stmt string) *Outcome {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	db, err := e.open(execCtx)
	if err != nil {
		return executionErrorOutcome(stmt, "open", err.Error())
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(execCtx, stmt)
	if err != nil {
		return e.classify(execCtx, stmt, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return executionErrorOutcome(stmt, "columns", err.Error())
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return executionErrorOutcome(stmt, "scan", err.Error())
		}
		// Byte slices become strings so results serialize cleanly.
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return e.classify(execCtx, stmt, err)
	}
	return successOutcome(stmt, columns, data)
}

// open prefers mode=ro; when that fails (older driver, special paths) it
// opens normally and sets PRAGMA query_only best-effort.
func (e *Executor) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+e.dbPath+"?mode=ro")
	if err == nil {
		if pingErr := db.PingContext(ctx); pingErr == nil {
			return db, nil
		}
		_ = db.Close()
	}
	e.SupportsReadOnly = false

	db, err = sql.Open("sqlite", e.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		slog.Debug("query_only pragma failed", slog.String("error", err.Error()))
	}
	return db, nil
}

func (e *Executor) classify(ctx context.Context, stmt string, err error) *Outcome {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return timeoutOutcome(stmt)
	}
	class := "query"
	msg := err.Error()
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") {
		class = "schema"
	} else if strings.Contains(msg, "syntax error") {
		class = "syntax"
	}
	return executionErrorOutcome(stmt, class, msg)
}
