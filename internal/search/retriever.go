package search

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Retriever runs the vector and lexical adapters in parallel and fuses their
// ranked lists. A single failing adapter degrades to the other's results;
// only both failing is an error.
type Retriever struct {
	vector  Adapter
	lexical Adapter
	fusion  *RRFFusion
	topK    int
}

// NewRetriever builds a hybrid retriever. If topK <= 0, 8 is used.
func NewRetriever(vector, lexical Adapter, fusion *RRFFusion, topK int) *Retriever {
	if fusion == nil {
		fusion = NewRRFFusion(DefaultRRFConstant)
	}
	if topK <= 0 {
		topK = 8
	}
	return &Retriever{vector: vector, lexical: lexical, fusion: fusion, topK: topK}
}

// Search retrieves the top results for the query within one session, using
// the retriever's configured result count.
func (r *Retriever) Search(ctx context.Context, sessionID, query string) ([]*Result, error) {
	return r.SearchK(ctx, sessionID, query, r.topK)
}

// SearchK is Search with a per-call result count. topK <= 0 falls back to the
// configured default.
func (r *Retriever) SearchK(ctx context.Context, sessionID, query string, topK int) ([]*Result, error) {
	if topK <= 0 {
		topK = r.topK
	}
	g, gctx := errgroup.WithContext(ctx)

	var (
		vecResults, lexResults []*Result
		vecErr, lexErr         error
	)

	// Over-fetch per source so fusion has enough candidates after dedup.
	perSource := topK * 2

	g.Go(func() error {
		vecResults, vecErr = r.vector.Search(gctx, sessionID, query, perSource)
		// Capture the error instead of failing the group: the lexical
		// adapter may still produce results.
		return nil
	})
	g.Go(func() error {
		lexResults, lexErr = r.lexical.Search(gctx, sessionID, query, perSource)
		return nil
	})

	if waitErr := g.Wait(); waitErr != nil {
		return nil, waitErr
	}

	if vecErr != nil && lexErr != nil {
		return nil, errors.Join(vecErr, lexErr)
	}
	if vecErr != nil {
		slog.Warn("vector adapter failed, continuing with lexical only",
			slog.String("error", vecErr.Error()))
	}
	if lexErr != nil {
		slog.Warn("lexical adapter failed, continuing with vector only",
			slog.String("error", lexErr.Error()))
	}

	return r.fusion.Fuse(vecResults, lexResults, topK), nil
}
