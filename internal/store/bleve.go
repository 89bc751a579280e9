package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// BleveSearcher is the alternative lexical backend. Unlike the FTS5 backend
// it maintains its own on-disk index and must be fed through IndexChunks.
type BleveSearcher struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

type bleveDoc struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	File      string `json:"file"`
	RowIndex  int    `json:"row_index"`
	ChunkID   string `json:"chunk_id"`
}

// NewBleveSearcher opens (or creates) the bleve index at path.
func NewBleveSearcher(path string) (*BleveSearcher, error) {
	var index bleve.Index
	var err error

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		index, err = bleve.New(path, buildBleveMapping())
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &BleveSearcher{index: index}, nil
}

func buildBleveMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Store = true

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	keywordField.Store = true

	numField := bleve.NewNumericFieldMapping()
	numField.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("session_id", keywordField)
	doc.AddFieldMappingsAt("file", keywordField)
	doc.AddFieldMappingsAt("row_index", numField)
	doc.AddFieldMappingsAt("chunk_id", keywordField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// IndexChunks adds (or replaces) the chunks in the index, batched.
func (b *BleveSearcher) IndexChunks(ctx context.Context, sessionID string, chunks []Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := bleveDoc{
			Text:      ch.Text,
			SessionID: sessionID,
			File:      ch.File,
			RowIndex:  ch.RowIndex,
			ChunkID:   ch.ID,
		}
		if err := batch.Index(sessionID+"/"+ch.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", ch.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search runs a match query scoped to the session.
func (b *BleveSearcher) Search(ctx context.Context, sessionID, q string, k int) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(q) == "" || k <= 0 {
		return nil, nil
	}

	match := bleve.NewMatchQuery(q)
	match.SetField("text")

	scope := bleve.NewTermQuery(sessionID)
	scope.SetField("session_id")

	req := bleve.NewSearchRequestOptions(
		query.NewConjunctionQuery([]query.Query{match, scope}), k, 0, false)
	req.Fields = []string{"text", "file", "row_index", "chunk_id"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := make([]*LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := &LexicalResult{Score: hit.Score, HasScore: true, RowIndex: -1}
		if v, ok := hit.Fields["text"].(string); ok {
			r.Text = v
		}
		if v, ok := hit.Fields["file"].(string); ok {
			r.File = v
		}
		if v, ok := hit.Fields["row_index"].(float64); ok {
			r.RowIndex = int(v)
		}
		if v, ok := hit.Fields["chunk_id"].(string); ok {
			r.ChunkID = v
		}
		out = append(out, r)
	}
	return out, nil
}

// Close closes the underlying index. Idempotent.
func (b *BleveSearcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// Lexical backend names accepted by NewLexicalSearcher.
const (
	LexicalBackendFTS   = "fts5"
	LexicalBackendBleve = "bleve"
)

// NewLexicalSearcher selects the lexical backend. The FTS5 backend reads the
// store's own full-text table; the bleve backend keeps a separate index under
// blevePath.
func NewLexicalSearcher(backend string, store *SQLiteStore, blevePath string) (LexicalSearcher, error) {
	switch backend {
	case "", LexicalBackendFTS:
		return NewFTSSearcher(store), nil
	case LexicalBackendBleve:
		return NewBleveSearcher(blevePath)
	default:
		return nil, fmt.Errorf("unknown lexical backend %q", backend)
	}
}
