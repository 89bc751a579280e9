package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaewoo-dev/datachat/internal/embed"
	"github.com/jaewoo-dev/datachat/internal/profile"
	"github.com/jaewoo-dev/datachat/internal/store"
)

// Pipeline drives one file from bytes to queryable state: column analysis,
// row chunks, relational + lexical + vector indexing, then a profile refresh.
type Pipeline struct {
	store    *store.SQLiteStore
	lexical  store.LexicalSearcher
	embedder embed.Embedder
	vectors  *store.VectorManager
	profiles *profile.Builder
}

// NewPipeline wires the ingestion dependencies.
func NewPipeline(s *store.SQLiteStore, lexical store.LexicalSearcher, embedder embed.Embedder, vectors *store.VectorManager, profiles *profile.Builder) *Pipeline {
	return &Pipeline{store: s, lexical: lexical, embedder: embedder, vectors: vectors, profiles: profiles}
}

// Result summarizes one ingestion run.
type Result struct {
	SessionID  string
	Filename   string
	ChunkCount int
	RowCount   int
	Columns    int
}

// IngestFile dispatches on extension: .csv gets full tabular treatment,
// .txt/.md become single document chunks.
func (p *Pipeline) IngestFile(ctx context.Context, sessionID, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return p.IngestCSV(ctx, sessionID, name, data)
	case ".txt", ".md":
		return p.IngestText(ctx, sessionID, name, data)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// IngestCSV parses, analyzes and indexes one CSV file. Re-ingesting the same
// filename replaces its column descriptors and appends fresh rows.
func (p *Pipeline) IngestCSV(ctx context.Context, sessionID, filename string, data []byte) (*Result, error) {
	start := time.Now()

	table, err := ParseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	specs := InferColumnTypes(table)
	if err := p.store.ReplaceColumns(ctx, sessionID, filename, specs); err != nil {
		return nil, fmt.Errorf("store columns: %w", err)
	}

	chunks := RowChunks(table, filename)
	res, err := p.indexChunks(ctx, sessionID, chunks)
	if err != nil {
		return nil, err
	}
	res.Filename = filename
	res.RowCount = len(table.Rows)
	res.Columns = len(specs)

	slog.Info("csv ingested",
		slog.String("session", sessionID),
		slog.String("file", filename),
		slog.Int("rows", res.RowCount),
		slog.Int("chunks", res.ChunkCount),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

// IngestText indexes a plain text or markdown document as one chunk.
func (p *Pipeline) IngestText(ctx context.Context, sessionID, filename string, data []byte) (*Result, error) {
	text := decodeBestEffort(data)
	chunk := TextChunk(text, filename, 0)

	res, err := p.indexChunks(ctx, sessionID, []store.Chunk{chunk})
	if err != nil {
		return nil, err
	}
	res.Filename = filename
	return res, nil
}

func (p *Pipeline) indexChunks(ctx context.Context, sessionID string, chunks []store.Chunk) (*Result, error) {
	if err := p.store.EnsureSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	stored, err := p.store.StoreChunks(ctx, sessionID, chunks)
	if err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}
	if err := p.lexical.IndexChunks(ctx, sessionID, chunks); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}
	if err := p.indexVectors(ctx, sessionID, chunks); err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	// A stale profile is worse than a missing one; rebuild eagerly.
	if _, err := p.profiles.Refresh(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("refresh profile: %w", err)
	}

	return &Result{SessionID: sessionID, ChunkCount: stored}, nil
}

// indexVectors embeds and stores the non-empty chunks. Whitespace-only texts
// are skipped: they would only add noise neighbors.
func (p *Pipeline) indexVectors(ctx context.Context, sessionID string, chunks []store.Chunk) error {
	var (
		ids   []string
		texts []string
		docs  []store.VectorDoc
	)
	for _, ch := range chunks {
		if strings.TrimSpace(ch.Text) == "" {
			continue
		}
		ids = append(ids, ch.ID)
		texts = append(texts, ch.Text)
		docs = append(docs, store.VectorDoc{Text: ch.Text, File: ch.File, RowIndex: ch.RowIndex})
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	idx, err := p.vectors.ForSession(sessionID)
	if err != nil {
		return err
	}
	if err := idx.Add(ctx, ids, vectors, docs); err != nil {
		return err
	}
	return p.vectors.Save(sessionID)
}
