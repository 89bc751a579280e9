// Package store provides relational persistence (SQLite), the per-session
// lexical index, and the per-session vector index. This is the persistence
// layer for all ingested data.
package store

import "context"

// Inferred column types recognized by the statistics engine.
const (
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeNumber   = "number"
	TypeNumeric  = "numeric"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
	TypeText     = "text"
)

// IsNumericType reports whether numeric aggregates apply to an inferred type.
func IsNumericType(inferredType string) bool {
	switch inferredType {
	case TypeInteger, TypeFloat, TypeNumber, TypeNumeric:
		return true
	}
	return false
}

// FileRecord identifies one ingested source file within a session.
type FileRecord struct {
	ID        int64
	SessionID string
	Filename  string
}

// ColumnDescriptor describes one column of an ingested tabular file.
// Descriptors are ordered by Position and fully replaced on re-analysis.
type ColumnDescriptor struct {
	SessionID    string
	FileID       int64
	Name         string
	InferredType string
	Position     int
}

// ColumnSpec is the input shape for ReplaceColumns.
type ColumnSpec struct {
	Name         string
	InferredType string
	Position     int
}

// Chunk is one ingested unit of text: a table row (or a split part of a long
// row) or a whole document. Structured carries the key-value projection and is
// set only on the first part of a tabular row.
type Chunk struct {
	ID         string
	Text       string
	File       string
	RowIndex   int // -1 for non-tabular sources
	Part       int
	Structured map[string]string
}

// LexicalResult is a single full-text match from the lexical index.
type LexicalResult struct {
	Text     string
	File     string
	FileID   int64
	RowIndex int
	ChunkID  string
	// Score is the raw BM25 score where present (lower is better for FTS5);
	// zero when the substring fallback produced the match.
	Score    float64
	HasScore bool
}

// ValueCount is one entry of a column's top-values list.
type ValueCount struct {
	Value string
	Count int
}

// ColumnKey identifies a distinct (file, column) pair recorded for a session.
type ColumnKey struct {
	FileID       int64
	Name         string
	InferredType string
}

// LexicalSearcher is the search contract of a lexical backend. The FTS5
// backend reads the fts_rows table maintained by StoreChunks; the Bleve
// backend maintains its own index and must be fed through IndexChunks.
type LexicalSearcher interface {
	IndexChunks(ctx context.Context, sessionID string, chunks []Chunk) error
	Search(ctx context.Context, sessionID, query string, k int) ([]*LexicalResult, error)
	Close() error
}

// ChatRecord is one persisted conversation.
type ChatRecord struct {
	ChatID    string
	Title     string
	SessionID string
	CreatedAt string
	UpdatedAt string
}

// ChatMessage is one persisted turn of a conversation.
type ChatMessage struct {
	ID        int64
	Role      string
	Content   string
	CreatedAt string
}
