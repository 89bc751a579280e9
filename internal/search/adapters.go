package search

import (
	"context"
	"fmt"

	"github.com/jaewoo-dev/datachat/internal/embed"
	"github.com/jaewoo-dev/datachat/internal/store"
)

// VectorAdapter retrieves nearest neighbors from the session's HNSW index.
type VectorAdapter struct {
	embedder embed.Embedder
	vectors  *store.VectorManager
}

// NewVectorAdapter creates the semantic retrieval adapter.
func NewVectorAdapter(embedder embed.Embedder, vectors *store.VectorManager) *VectorAdapter {
	return &VectorAdapter{embedder: embedder, vectors: vectors}
}

// Name implements Adapter.
func (a *VectorAdapter) Name() string { return SourceVector }

// Search embeds the query and runs nearest-neighbor search on the session
// index. Hits carry no adapter ID: deduplication against lexical hits
// happens through the composite key, which both adapters produce.
func (a *VectorAdapter) Search(ctx context.Context, sessionID, query string, k int) ([]*Result, error) {
	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx, err := a.vectors.ForSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	hits, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]*Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, &Result{
			Text:     h.Doc.Text,
			File:     h.Doc.File,
			RowIndex: h.Doc.RowIndex,
			Source:   SourceVector,
			Score:    float64(h.Score),
		})
	}
	return out, nil
}

// LexicalAdapter retrieves full-text matches from the lexical backend.
type LexicalAdapter struct {
	searcher store.LexicalSearcher
}

// NewLexicalAdapter creates the lexical retrieval adapter.
func NewLexicalAdapter(searcher store.LexicalSearcher) *LexicalAdapter {
	return &LexicalAdapter{searcher: searcher}
}

// Name implements Adapter.
func (a *LexicalAdapter) Name() string { return SourceLexical }

// Search runs the lexical backend and converts its hits.
func (a *LexicalAdapter) Search(ctx context.Context, sessionID, query string, k int) ([]*Result, error) {
	hits, err := a.searcher.Search(ctx, sessionID, query, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	out := make([]*Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, &Result{
			Text:     h.Text,
			File:     h.File,
			RowIndex: h.RowIndex,
			Source:   SourceLexical,
			Score:    h.Score,
		})
	}
	return out, nil
}
