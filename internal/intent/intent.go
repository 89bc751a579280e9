// Package intent decides which retrieval strategies apply to a question:
// heuristics first, a constrained generation-model fallback only when the
// keywords are silent.
package intent

import (
	"context"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jaewoo-dev/datachat/internal/llm"
)

// Mode is the resolved retrieval strategy.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeSQL     Mode = "sql"
	ModeHybrid  Mode = "hybrid"
	ModeBoth    Mode = "both"
	ModeStats   Mode = "stats"
	ModeColumns Mode = "columns"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeSQL, ModeHybrid, ModeBoth, ModeStats, ModeColumns:
		return true
	}
	return false
}

// sqlKeywords signal questions answerable by aggregation over the tables.
var sqlKeywords = []string{
	"schema", "column", "columns", "table", "tables", "row", "rows",
	"count", "sum", "avg", "min", "max",
	"group by", "order by", "where", "join", "select",
	"총", "개수", "열", "행", "스키마",
}

// searchKeywords signal questions answered by document retrieval.
var searchKeywords = []string{
	"search", "find", "context", "내용", "설명", "요약", "상세",
}

// statsCues trigger the statistics engine when tabular data exists. Count
// and sum questions are not cues here; they route through sqlKeywords.
var statsCues = []string{
	"statistic", "statistics", "distribution", "ratio", "breakdown",
	"통계", "분포", "비율",
}

// columnsCues trigger column listing when the session has data.
var columnsCues = []string{
	"column name", "column names", "list columns", "what columns",
	"which columns", "컬럼", "칼럼", "열 목록",
}

// DataChecker answers whether a session has ingested data. Both methods
// tolerate an empty session id by returning false.
type DataChecker interface {
	HasSessionData(ctx context.Context, sessionID string) (bool, error)
	HasTabularData(ctx context.Context, sessionID string) (bool, error)
}

// Options carries per-question classification context.
type Options struct {
	// Override short-circuits classification when set to a valid mode.
	Override Mode
	// SessionID scopes the data-presence checks. Empty means no session.
	SessionID string
}

// Classifier resolves question intent. Heuristic results are cached per
// (session, question).
type Classifier struct {
	client llm.Client
	data   DataChecker
	cache  *lru.Cache[string, Mode]
}

// DefaultCacheSize bounds the classification cache.
const DefaultCacheSize = 512

// NewClassifier builds a classifier. client may be nil; the LLM fallback is
// then skipped and ambiguous questions resolve to none.
func NewClassifier(client llm.Client, data DataChecker) *Classifier {
	cache, _ := lru.New[string, Mode](DefaultCacheSize)
	return &Classifier{client: client, data: data, cache: cache}
}

// Classify resolves the question's mode. Order: override, stats cues,
// columns cues, keyword scoring, LLM fallback, none.
func (c *Classifier) Classify(ctx context.Context, question string, opts Options) Mode {
	if opts.Override.Valid() {
		return opts.Override
	}

	cacheKey := opts.SessionID + "\x00" + question
	if mode, ok := c.cache.Get(cacheKey); ok {
		return mode
	}

	mode := c.classify(ctx, question, opts)
	c.cache.Add(cacheKey, mode)
	return mode
}

func (c *Classifier) classify(ctx context.Context, question string, opts Options) Mode {
	q := strings.ToLower(question)

	// Stats and columns need ingested data to mean anything.
	if containsAny(q, statsCues) && c.hasTabularData(ctx, opts.SessionID) {
		return ModeStats
	}
	if containsAny(q, columnsCues) && c.hasSessionData(ctx, opts.SessionID) {
		return ModeColumns
	}

	sqlScore := countMatches(q, sqlKeywords)
	searchScore := countMatches(q, searchKeywords)
	switch {
	case sqlScore > 0 && searchScore > 0:
		return ModeBoth
	case sqlScore > 0:
		return ModeSQL
	case searchScore > 0:
		return ModeHybrid
	}

	return c.llmFallback(ctx, question)
}

// llmFallback asks the model for exactly one label out of {sql, hybrid,
// none, both}. Any failure or off-vocabulary reply resolves to none.
func (c *Classifier) llmFallback(ctx context.Context, question string) Mode {
	if c.client == nil {
		return ModeNone
	}

	reply, err := c.client.Complete(ctx, []llm.Message{
		{Role: "system", Content: "Classify the user question into one of: sql, hybrid, none, both. Reply with exactly one label."},
		{Role: "user", Content: question},
	})
	if err != nil {
		slog.Debug("intent fallback failed", slog.String("error", err.Error()))
		return ModeNone
	}

	switch Mode(strings.ToLower(strings.TrimSpace(reply))) {
	case ModeSQL:
		return ModeSQL
	case ModeHybrid:
		return ModeHybrid
	case ModeBoth:
		return ModeBoth
	case ModeNone:
		return ModeNone
	}
	return ModeNone
}

func (c *Classifier) hasTabularData(ctx context.Context, sessionID string) bool {
	if sessionID == "" || c.data == nil {
		return false
	}
	ok, err := c.data.HasTabularData(ctx, sessionID)
	if err != nil {
		slog.Debug("tabular data check failed", slog.String("error", err.Error()))
		return false
	}
	return ok
}

func (c *Classifier) hasSessionData(ctx context.Context, sessionID string) bool {
	if sessionID == "" || c.data == nil {
		return false
	}
	ok, err := c.data.HasSessionData(ctx, sessionID)
	if err != nil {
		slog.Debug("session data check failed", slog.String("error", err.Error()))
		return false
	}
	return ok
}

func containsAny(q string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	return false
}

func countMatches(q string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(q, k) {
			n++
		}
	}
	return n
}
