package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *VectorIndex {
	t.Helper()
	idx, err := NewVectorIndex(VectorIndexConfig{Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestVectorIndex_AddAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
		[]VectorDoc{
			{Text: "row a", File: "f.csv", RowIndex: 0},
			{Text: "row b", File: "f.csv", RowIndex: 1},
			{Text: "row c", File: "f.csv", RowIndex: 2},
		})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Count())

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "row a", results[0].Doc.Text)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-4, "identical direction scores ~1")
	assert.Equal(t, "c", results[1].ID)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}, []VectorDoc{{}})
	var mismatch ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	require.ErrorAs(t, err, &mismatch)
}

func TestVectorIndex_DeleteIsLazy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]VectorDoc{{Text: "a"}, {Text: "b"}}))

	require.NoError(t, idx.Delete(ctx, []string{"a"}))
	assert.Equal(t, 1, idx.Count())
	assert.False(t, idx.Contains("a"))

	// The orphaned graph node must not surface in results.
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ID)
	}
}

func TestVectorIndex_ReAddReplaces(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}, []VectorDoc{{Text: "old"}}))
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0, 1, 0}}, []VectorDoc{{Text: "new"}}))
	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Doc.Text)
}

func TestVectorIndex_SaveLoadRoundTrip(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]VectorDoc{
			{Text: "row a", File: "f.csv", RowIndex: 0},
			{Text: "row b", File: "f.csv", RowIndex: 1},
		}))

	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	require.NoError(t, idx.Save(path))

	loaded, err := NewVectorIndex(VectorIndexConfig{Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = loaded.Close() })
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "row b", results[0].Doc.Text)
}

func TestVectorIndex_EmptySearch(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorManager_PerSessionIsolation(t *testing.T) {
	dir := t.TempDir()
	m := NewVectorManager(dir, VectorIndexConfig{Dimensions: 3})
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	idx1, err := m.ForSession("s1")
	require.NoError(t, err)
	require.NoError(t, idx1.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0}}, []VectorDoc{{Text: "a"}}))

	idx2, err := m.ForSession("s2")
	require.NoError(t, err)
	assert.Zero(t, idx2.Count(), "sessions must not share an index")

	again, err := m.ForSession("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Count(), "repeat lookups return the same index")

	require.NoError(t, m.Save("s1"))
	assert.FileExists(t, filepath.Join(dir, "s1", "vectors.hnsw"))
	assert.FileExists(t, filepath.Join(dir, "s1", "vectors.hnsw.meta"))
}
