// Package orchestrator routes one question through intent resolution, the
// SQL, stats and columns agents, hybrid retrieval, and answer generation.
// Nodes never mutate the working state: each returns a delta that is applied
// functionally between steps.
package orchestrator

import (
	"github.com/jaewoo-dev/datachat/internal/intent"
	"github.com/jaewoo-dev/datachat/internal/search"
	"github.com/jaewoo-dev/datachat/internal/sqlgen"
)

// Provenance tags one piece of evidence with the subsystem that produced it.
type Provenance struct {
	Source string
	Text   string
}

// Provenance source tags. Document evidence uses the filename instead.
const (
	SourceSQL       = "sql"
	SourceSQLAnswer = "sql_answer"
	SourceStats     = "stats"
	SourceColumns   = "columns"
)

// State is the working record of one question. Every field except the inputs
// is optional; a node missing its input simply skips.
type State struct {
	Question  string
	SessionID string
	ChatID    string
	TopK      int
	Override  intent.Mode

	Profile        string
	Intent         intent.Mode
	SQLOutcome     *sqlgen.Outcome
	SQLAnswer      string
	StatsSummary   string
	ColumnsSummary string
	Retrieved      []*search.Result
	Answer         string
}

// Delta is a node's contribution. Nil pointers mean "no change"; Apply never
// touches the receiver.
type Delta struct {
	Profile        *string
	Intent         *intent.Mode
	SQLOutcome     *sqlgen.Outcome
	SQLAnswer      *string
	StatsSummary   *string
	ColumnsSummary *string
	Retrieved      []*search.Result
	Answer         *string
}

// Apply returns a copy of the state with the delta merged in.
func (s State) Apply(d Delta) State {
	next := s
	if d.Profile != nil {
		next.Profile = *d.Profile
	}
	if d.Intent != nil {
		next.Intent = *d.Intent
	}
	if d.SQLOutcome != nil {
		next.SQLOutcome = d.SQLOutcome
	}
	if d.SQLAnswer != nil {
		next.SQLAnswer = *d.SQLAnswer
	}
	if d.StatsSummary != nil {
		next.StatsSummary = *d.StatsSummary
	}
	if d.ColumnsSummary != nil {
		next.ColumnsSummary = *d.ColumnsSummary
	}
	if d.Retrieved != nil {
		next.Retrieved = d.Retrieved
	}
	if d.Answer != nil {
		next.Answer = *d.Answer
	}
	return next
}

// Response is the query contract's output.
type Response struct {
	Answer         string
	Provenance     []Provenance
	ResolvedIntent intent.Mode
}

func strPtr(s string) *string { return &s }

func modePtr(m intent.Mode) *intent.Mode { return &m }
