package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jaewoo-dev/datachat/internal/config"
	"github.com/jaewoo-dev/datachat/internal/embed"
	"github.com/jaewoo-dev/datachat/internal/ingest"
	"github.com/jaewoo-dev/datachat/internal/intent"
	"github.com/jaewoo-dev/datachat/internal/llm"
	"github.com/jaewoo-dev/datachat/internal/orchestrator"
	"github.com/jaewoo-dev/datachat/internal/profile"
	"github.com/jaewoo-dev/datachat/internal/search"
	"github.com/jaewoo-dev/datachat/internal/sqlgen"
	"github.com/jaewoo-dev/datachat/internal/stats"
	"github.com/jaewoo-dev/datachat/internal/store"
)

// app bundles the wired subsystems for one CLI invocation.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	lexical  store.LexicalSearcher
	embedder embed.Embedder
	vectors  *store.VectorManager
	profiles *profile.Builder
	pipeline *ingest.Pipeline
	orch     *orchestrator.Orchestrator
}

// newApp loads config and wires everything. Commands that only read the
// relational store still get the full graph; wiring is cheap next to any
// actual work.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, err
	}

	s, err := store.NewSQLiteStore(cfg.Paths.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	lexical, err := store.NewLexicalSearcher(cfg.Search.LexicalBackend, s, cfg.Paths.BleveDir)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open lexical backend: %w", err)
	}

	embedder, err := embed.New(ctx, embed.Config{
		Provider:   cfg.Embedding.Provider,
		Host:       cfg.Embedding.Host,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Timeout:    cfg.Embedding.Timeout,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = lexical.Close()
		_ = s.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	vectors := store.NewVectorManager(cfg.Paths.VectorDir, store.VectorIndexConfig{
		Dimensions: embedder.Dimensions(),
	})
	profiles := profile.NewBuilder(s, cfg.Profile.MaxTokens)
	pipeline := ingest.NewPipeline(s, lexical, embedder, vectors, profiles)

	client, err := llm.NewHTTPClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		_ = lexical.Close()
		_ = s.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	classifier := intent.NewClassifier(client, s)
	executor := sqlgen.NewExecutor(cfg.Paths.DatabaseFile, cfg.SQL.ExecTimeout)
	generator := sqlgen.NewGenerator(client, executor, cfg.SQL.DefaultLimit)
	statsEng := stats.NewEngine(s)
	retriever := search.NewRetriever(
		search.NewVectorAdapter(embedder, vectors),
		search.NewLexicalAdapter(lexical),
		search.NewRRFFusion(cfg.Search.RRFK),
		cfg.Search.TopK,
	)
	orch := orchestrator.New(s, classifier, generator, statsEng, retriever, profiles, client, cfg.SQL.Enabled)

	return &app{
		cfg:      cfg,
		store:    s,
		lexical:  lexical,
		embedder: embedder,
		vectors:  vectors,
		profiles: profiles,
		pipeline: pipeline,
		orch:     orch,
	}, nil
}

// close releases resources in reverse wiring order.
func (a *app) close() {
	_ = a.vectors.Close()
	_ = a.embedder.Close()
	_ = a.lexical.Close()
	_ = a.store.Close()
}

// runTimeout bounds one CLI operation end to end.
const runTimeout = 10 * time.Minute

func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// Config file edits made while a long command runs invalidate the cached
	// config, so later Get calls reload it.
	go func() { _ = config.Watch(ctx) }()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
