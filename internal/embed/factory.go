package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderStatic = "static"
	ProviderAuto   = "auto"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Host       string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	CacheSize  int
}

// New builds the configured embedder wrapped in the LRU cache. The "auto"
// provider tries Ollama and falls back to the static embedder when the
// endpoint is unreachable.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	inner, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newProvider(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderStatic:
		return NewStaticEmbedder(), nil

	case ProviderOllama:
		return NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})

	case ProviderAuto, "":
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err == nil {
			return e, nil
		}
		slog.Warn("ollama embedder unavailable, using static embedder",
			slog.String("error", err.Error()))
		return NewStaticEmbedder(), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
