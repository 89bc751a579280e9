package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// FTSSearcher serves lexical search from the fts_rows virtual table that
// StoreChunks already maintains. IndexChunks is a no-op for this backend.
type FTSSearcher struct {
	store *SQLiteStore
}

// NewFTSSearcher wraps the SQLite store's full-text index.
func NewFTSSearcher(store *SQLiteStore) *FTSSearcher {
	return &FTSSearcher{store: store}
}

// IndexChunks is a no-op: fts_rows entries are written by StoreChunks.
func (f *FTSSearcher) IndexChunks(ctx context.Context, sessionID string, chunks []Chunk) error {
	return nil
}

// Search runs an OR-of-tokens FTS5 MATCH. Queries that FTS5 cannot parse
// fall back to a LIKE substring scan instead of failing.
func (f *FTSSearcher) Search(ctx context.Context, sessionID, query string, k int) ([]*LexicalResult, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}

	match := buildMatchQuery(query)
	if match != "" {
		results, err := f.matchSearch(ctx, sessionID, match, k)
		if err == nil {
			return results, nil
		}
		if !isFTSSyntaxError(err) {
			return nil, err
		}
	}
	return f.likeSearch(ctx, sessionID, query, k)
}

func (f *FTSSearcher) matchSearch(ctx context.Context, sessionID, match string, k int) ([]*LexicalResult, error) {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	if f.store.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := f.store.db.QueryContext(ctx,
		`SELECT fr.text, fr.file_id, fr.row_index, fr.chunk_id, bm25(fts_rows),
		        COALESCE(f.filename, '')
		 FROM fts_rows fr LEFT JOIN files f ON f.id = fr.file_id
		 WHERE fr.session_id = ? AND fts_rows MATCH ?
		 ORDER BY bm25(fts_rows) LIMIT ?`,
		sessionID, match, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LexicalResult
	for rows.Next() {
		r := &LexicalResult{HasScore: true}
		var rowIndex sql.NullInt64
		var chunkID sql.NullString
		if err := rows.Scan(&r.Text, &r.FileID, &rowIndex, &chunkID, &r.Score, &r.File); err != nil {
			return nil, err
		}
		r.RowIndex = int(rowIndex.Int64)
		if !rowIndex.Valid {
			r.RowIndex = -1
		}
		r.ChunkID = chunkID.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (f *FTSSearcher) likeSearch(ctx context.Context, sessionID, query string, k int) ([]*LexicalResult, error) {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	if f.store.closed {
		return nil, fmt.Errorf("store is closed")
	}

	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := f.store.db.QueryContext(ctx,
		`SELECT fr.text, fr.file_id, fr.row_index, fr.chunk_id, COALESCE(f.filename, '')
		 FROM fts_rows fr LEFT JOIN files f ON f.id = fr.file_id
		 WHERE fr.session_id = ? AND fr.text LIKE ? LIMIT ?`,
		sessionID, pattern, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LexicalResult
	for rows.Next() {
		r := &LexicalResult{}
		var rowIndex sql.NullInt64
		var chunkID sql.NullString
		if err := rows.Scan(&r.Text, &r.FileID, &rowIndex, &chunkID, &r.File); err != nil {
			return nil, err
		}
		r.RowIndex = int(rowIndex.Int64)
		if !rowIndex.Valid {
			r.RowIndex = -1
		}
		r.ChunkID = chunkID.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases nothing: the underlying database belongs to the store.
func (f *FTSSearcher) Close() error {
	return nil
}

// buildMatchQuery tokenizes on whitespace, quotes each token, and joins
// with OR so that any matching token qualifies a row.
func buildMatchQuery(query string) string {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.ReplaceAll(tok, `"`, `""`)
		quoted = append(quoted, `"`+tok+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// isFTSSyntaxError detects the parse errors FTS5 produces for queries with
// unbalanced quotes or bare operators.
func isFTSSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "malformed match") ||
		strings.Contains(msg, "unknown special query")
}
