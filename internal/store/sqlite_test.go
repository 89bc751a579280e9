package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureSessionAndFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureSession(ctx, "s1"))
	require.NoError(t, s.EnsureSession(ctx, "s1"), "must be idempotent")

	id1, err := s.EnsureFile(ctx, "s1", "a.csv")
	require.NoError(t, err)
	id2, err := s.EnsureFile(ctx, "s1", "a.csv")
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "same (session, filename) reuses the record")

	id3, err := s.EnsureFile(ctx, "s2", "a.csv")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3, "files are scoped per session")
}

func TestReplaceColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceColumns(ctx, "s1", "a.csv", []ColumnSpec{
		{Name: "name", InferredType: TypeText, Position: 0},
		{Name: "age", InferredType: TypeInteger, Position: 1},
	}))

	// Re-analysis replaces the full set, never merges.
	require.NoError(t, s.ReplaceColumns(ctx, "s1", "a.csv", []ColumnSpec{
		{Name: "city", InferredType: TypeText, Position: 0},
	}))

	files, err := s.ListFiles(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, files, 1)

	cols, err := s.ColumnsForFile(ctx, "s1", files[0].ID)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "city", cols[0].Name)
}

func TestStoreChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{
			ID: "0-aaa", Text: "name: kim, age: 30", File: "a.csv", RowIndex: 0,
			Structured: map[string]string{"name": "kim", "age": "30"},
		},
		{
			ID: "1-bbb", Text: "continuation of a long row", File: "a.csv", RowIndex: 0, Part: 1,
		},
		{
			ID: "2-ccc", Text: "a plain document", File: "notes.txt", RowIndex: -1,
		},
	}
	n, err := s.StoreChunks(ctx, "s1", chunks)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := s.RowCount(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Only the structured chunk projects into row_kv.
	var kvCount int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(1) FROM row_kv WHERE session_id = 's1'`).Scan(&kvCount))
	assert.Equal(t, 2, kvCount)

	// data_json is valid JSON carrying the structured values.
	var payload string
	require.NoError(t, s.db.QueryRow(
		`SELECT data_json FROM rows WHERE chunk_id = '0-aaa'`).Scan(&payload))
	var decoded struct {
		Text   string            `json:"text"`
		Values map[string]string `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "kim", decoded.Values["name"])
}

func TestStoreChunks_EmptyValuesBecomeNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.StoreChunks(ctx, "s1", []Chunk{{
		ID: "0-x", Text: "region: ", File: "a.csv", RowIndex: 0,
		Structured: map[string]string{"region": ""},
	}})
	require.NoError(t, err)

	var nulls int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(1) FROM row_kv WHERE col_name = 'region' AND value_text IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)
}

func TestHasSessionAndTabularData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.HasSessionData(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.StoreChunks(ctx, "s1", []Chunk{{ID: "c1", Text: "doc", File: "n.txt", RowIndex: -1}})
	require.NoError(t, err)

	ok, err = s.HasSessionData(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Text-only sessions carry no column descriptors.
	ok, err = s.HasTabularData(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReplaceColumns(ctx, "s1", "a.csv", []ColumnSpec{
		{Name: "x", InferredType: TypeText, Position: 0},
	}))
	ok, err = s.HasTabularData(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistinctColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceColumns(ctx, "s1", "a.csv", []ColumnSpec{
		{Name: "b", InferredType: TypeText, Position: 1},
		{Name: "a", InferredType: TypeInteger, Position: 0},
	}))
	require.NoError(t, s.ReplaceColumns(ctx, "s1", "b.csv", []ColumnSpec{
		{Name: "a", InferredType: TypeText, Position: 0},
	}))

	keys, err := s.DistinctColumns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, keys, 3)
	// Ordered by file then name.
	assert.Equal(t, "a", keys[0].Name)
	assert.Equal(t, "b", keys[1].Name)
	assert.Equal(t, keys[0].FileID, keys[1].FileID)
	assert.NotEqual(t, keys[0].FileID, keys[2].FileID)
}

func TestRowCount_PerFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.StoreChunks(ctx, "s1", []Chunk{
		{ID: "1", Text: "x", File: "a.csv", RowIndex: 0},
		{ID: "2", Text: "y", File: "a.csv", RowIndex: 1},
		{ID: "3", Text: "z", File: "b.csv", RowIndex: 0},
	})
	require.NoError(t, err)

	files, err := s.ListFiles(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, files, 2)

	n, err := s.RowCount(ctx, "s1", files[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.RowCount(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestClose_Idempotent(t *testing.T) {
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.EnsureFile(context.Background(), "s1", "a.csv")
	assert.Error(t, err)
}
