// Package search provides hybrid retrieval: vector and lexical adapters run
// in parallel and their ranked lists are fused with Reciprocal Rank Fusion.
package search

import (
	"context"
	"fmt"
)

// Adapter source names used in provenance and logging.
const (
	SourceVector  = "vector"
	SourceLexical = "lexical"
)

// Result is one retrieved document from any adapter.
type Result struct {
	ID       string
	Text     string
	File     string
	RowIndex int
	Source   string
	// Score is the adapter-native score before fusion and the fused RRF
	// score afterwards.
	Score float64
}

// Key returns the deduplication key used during fusion: the adapter-assigned
// ID when present, otherwise a composite of file, row index and a text prefix.
func (r *Result) Key() string {
	if r.ID != "" {
		return r.ID
	}
	prefix := r.Text
	if len(prefix) > 64 {
		prefix = prefix[:64]
	}
	return fmt.Sprintf("%s::%d::%s", r.File, r.RowIndex, prefix)
}

// Adapter is one retrieval source. Adapters must be safe for concurrent use.
type Adapter interface {
	Name() string
	Search(ctx context.Context, sessionID, query string, k int) ([]*Result, error)
}
