package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name    string
	results []*Result
	err     error
	gotK    int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Search(_ context.Context, _, _ string, k int) ([]*Result, error) {
	f.gotK = k
	return f.results, f.err
}

func TestRetriever_MergesBothSources(t *testing.T) {
	vec := &fakeAdapter{name: SourceVector, results: []*Result{
		{Text: "alpha", File: "a.csv", RowIndex: 0, Source: SourceVector},
	}}
	lex := &fakeAdapter{name: SourceLexical, results: []*Result{
		{Text: "beta", File: "a.csv", RowIndex: 1, Source: SourceLexical},
	}}

	r := NewRetriever(vec, lex, nil, 4)
	results, err := r.Search(context.Background(), "s1", "query")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Each adapter is over-fetched relative to the final cut.
	assert.Equal(t, 8, vec.gotK)
	assert.Equal(t, 8, lex.gotK)
}

func TestRetriever_SingleAdapterFailureDegrades(t *testing.T) {
	lex := &fakeAdapter{name: SourceLexical, results: []*Result{
		{Text: "beta", File: "a.csv", RowIndex: 1, Source: SourceLexical},
	}}

	t.Run("vector down", func(t *testing.T) {
		vec := &fakeAdapter{name: SourceVector, err: errors.New("index missing")}
		r := NewRetriever(vec, lex, nil, 4)
		results, err := r.Search(context.Background(), "s1", "query")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "beta", results[0].Text)
	})

	t.Run("both down", func(t *testing.T) {
		vec := &fakeAdapter{name: SourceVector, err: errors.New("index missing")}
		bad := &fakeAdapter{name: SourceLexical, err: errors.New("fts broken")}
		r := NewRetriever(vec, bad, nil, 4)
		_, err := r.Search(context.Background(), "s1", "query")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index missing")
		assert.Contains(t, err.Error(), "fts broken")
	})
}

func TestRetriever_TopKOverride(t *testing.T) {
	vec := &fakeAdapter{name: SourceVector, results: mkResults(SourceVector, "a", "b", "c", "d")}
	lex := &fakeAdapter{name: SourceLexical}

	r := NewRetriever(vec, lex, nil, 8)

	results, err := r.SearchK(context.Background(), "s1", "query", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 4, vec.gotK)

	// Zero falls back to the configured default.
	results, err = r.SearchK(context.Background(), "s1", "query", 0)
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, 16, vec.gotK)
}

func TestRetriever_DefaultTopK(t *testing.T) {
	r := NewRetriever(&fakeAdapter{}, &fakeAdapter{}, nil, 0)
	assert.Equal(t, 8, r.topK)
}
