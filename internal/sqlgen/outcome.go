// Package sqlgen turns questions into constrained SQLite SELECT statements,
// enforces the read-only safety rules, executes with a hard timeout, and
// reports a tagged outcome.
package sqlgen

import "fmt"

// OutcomeKind discriminates the Outcome variants.
type OutcomeKind int

const (
	// OutcomeSuccess carries columns, rows and a row count.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRejected means the generated text never became a safe statement.
	OutcomeRejected
	// OutcomeTimeout means execution exceeded the wall-clock budget.
	OutcomeTimeout
	// OutcomeExecutionError means SQLite rejected or failed the statement.
	OutcomeExecutionError
)

// Rejection reasons.
const (
	ReasonNoSelect         = "no_select_statement_generated"
	ReasonForbiddenKeyword = "forbidden_keyword"
	ReasonMultipleStmts    = "multiple_statements"
)

// Outcome is the tagged result of one SQL attempt. Statement is set for every
// variant that got as far as producing one; Success and error payloads are
// mutually exclusive.
type Outcome struct {
	Kind      OutcomeKind
	Statement string

	// Success payload.
	Columns  []string
	Rows     [][]any
	RowCount int

	// Rejected payload.
	Reason string

	// ExecutionError payload.
	ErrClass string
	Message  string
}

// OK reports whether the outcome carries a successful result.
func (o *Outcome) OK() bool {
	return o != nil && o.Kind == OutcomeSuccess
}

// Failed reports whether any non-success outcome exists.
func (o *Outcome) Failed() bool {
	return o != nil && o.Kind != OutcomeSuccess
}

// ErrorText renders the failure for narration. Empty for success.
func (o *Outcome) ErrorText() string {
	if o == nil {
		return ""
	}
	switch o.Kind {
	case OutcomeRejected:
		return fmt.Sprintf("rejected: %s", o.Reason)
	case OutcomeTimeout:
		return "timeout"
	case OutcomeExecutionError:
		return fmt.Sprintf("%s: %s", o.ErrClass, o.Message)
	}
	return ""
}

func successOutcome(stmt string, columns []string, rows [][]any) *Outcome {
	return &Outcome{
		Kind:      OutcomeSuccess,
		Statement: stmt,
		Columns:   columns,
		Rows:      rows,
		RowCount:  len(rows),
	}
}

func rejectedOutcome(stmt, reason string) *Outcome {
	return &Outcome{Kind: OutcomeRejected, Statement: stmt, Reason: reason}
}

func timeoutOutcome(stmt string) *Outcome {
	return &Outcome{Kind: OutcomeTimeout, Statement: stmt}
}

func executionErrorOutcome(stmt, class, message string) *Outcome {
	return &Outcome{Kind: OutcomeExecutionError, Statement: stmt, ErrClass: class, Message: message}
}
