// Package config loads the process-wide configuration from YAML with
// environment overrides. A singleton holds the loaded config; Invalidate
// drops it so the next Get reloads from disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Search    SearchConfig    `yaml:"search"`
	SQL       SQLConfig       `yaml:"sql"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Profile   ProfileConfig   `yaml:"profile"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabaseFile string `yaml:"database_file"`
	VectorDir    string `yaml:"vector_dir"`
	BleveDir     string `yaml:"bleve_dir"`
}

// SearchConfig tunes hybrid retrieval.
type SearchConfig struct {
	TopK           int    `yaml:"top_k"`
	RRFK           int    `yaml:"rrf_k"`
	LexicalBackend string `yaml:"lexical_backend"` // fts5 | bleve
}

// SQLConfig governs SQL generation and execution.
type SQLConfig struct {
	Enabled        bool          `yaml:"enabled"`
	DefaultLimit   int           `yaml:"default_limit"`
	ExecTimeout    time.Duration `yaml:"exec_timeout"`
	MaxResultRows  int           `yaml:"max_result_rows"`
	IntentOverride string        `yaml:"intent_override"` // "", none, sql, hybrid, both, stats, columns
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // auto | ollama | static
	Host       string        `yaml:"host"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size"`
}

// LLMConfig points at the chat completion endpoint.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ProfileConfig bounds the session profile.
type ProfileConfig struct {
	MaxTokens int `yaml:"max_tokens"` // char budget = max(256, MaxTokens*4)
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level     string `yaml:"level"` // debug | info | warn | error
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	Stderr    bool   `yaml:"stderr"`
}

// NewConfig returns the defaults applied before any file or env override.
func NewConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Paths: PathsConfig{
			DataDir:      dataDir,
			DatabaseFile: filepath.Join(dataDir, "datachat.db"),
			VectorDir:    filepath.Join(dataDir, "vectors"),
			BleveDir:     filepath.Join(dataDir, "bleve"),
		},
		Search: SearchConfig{
			TopK:           8,
			RRFK:           60,
			LexicalBackend: "fts5",
		},
		SQL: SQLConfig{
			Enabled:       true,
			DefaultLimit:  100,
			ExecTimeout:   5 * time.Second,
			MaxResultRows: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:  "auto",
			Host:      "http://localhost:11434",
			Model:     "nomic-embed-text",
			BatchSize: 32,
			Timeout:   60 * time.Second,
			CacheSize: 1000,
		},
		LLM: LLMConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1",
			Temperature: 0.1,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
		},
		Profile: ProfileConfig{
			MaxTokens: 256,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("DATACHAT_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".datachat"
	}
	return filepath.Join(home, ".datachat")
}

// ConfigPath returns the YAML file consulted by Load.
func ConfigPath() string {
	if p := os.Getenv("DATACHAT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads defaults, the YAML file (when present), then env overrides.
func Load() (*Config, error) {
	cfg := NewConfig()

	path := ConfigPath()
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies DATACHAT_* environment variables on top of the
// file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATACHAT_DB"); v != "" {
		c.Paths.DatabaseFile = v
	}
	if v := os.Getenv("DATACHAT_LEXICAL_BACKEND"); v != "" {
		c.Search.LexicalBackend = v
	}
	if v := os.Getenv("DATACHAT_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.TopK = n
		}
	}
	if v := os.Getenv("DATACHAT_SQL_ENABLED"); v != "" {
		c.SQL.Enabled = isTruthy(v)
	}
	if v := os.Getenv("DATACHAT_INTENT_OVERRIDE"); v != "" {
		c.SQL.IntentOverride = v
	}
	if v := os.Getenv("DATACHAT_EMBED_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("DATACHAT_EMBED_HOST"); v != "" {
		c.Embedding.Host = v
	}
	if v := os.Getenv("DATACHAT_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("DATACHAT_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("DATACHAT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("DATACHAT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("DATACHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DATACHAT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate rejects configurations the rest of the system cannot run with.
func (c *Config) Validate() error {
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.RRFK <= 0 {
		return fmt.Errorf("search.rrf_k must be positive, got %d", c.Search.RRFK)
	}
	switch c.Search.LexicalBackend {
	case "", "fts5", "bleve":
	default:
		return fmt.Errorf("unknown lexical backend %q", c.Search.LexicalBackend)
	}
	if c.SQL.DefaultLimit <= 0 {
		return fmt.Errorf("sql.default_limit must be positive, got %d", c.SQL.DefaultLimit)
	}
	if c.SQL.ExecTimeout <= 0 {
		return fmt.Errorf("sql.exec_timeout must be positive, got %s", c.SQL.ExecTimeout)
	}
	return nil
}

var (
	mu     sync.Mutex
	loaded *Config
)

// Get returns the process-wide config, loading it on first use or after
// Invalidate.
func Get() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if loaded != nil {
		return loaded, nil
	}
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	loaded = cfg
	return loaded, nil
}

// Invalidate drops the cached config so the next Get reloads it. The config
// watcher calls this when the file changes.
func Invalidate() {
	mu.Lock()
	defer mu.Unlock()
	loaded = nil
}
