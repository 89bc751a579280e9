package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jaewoo-dev/datachat/internal/intent"
	"github.com/jaewoo-dev/datachat/internal/llm"
	"github.com/jaewoo-dev/datachat/internal/profile"
	"github.com/jaewoo-dev/datachat/internal/search"
	"github.com/jaewoo-dev/datachat/internal/sqlgen"
	"github.com/jaewoo-dev/datachat/internal/stats"
	"github.com/jaewoo-dev/datachat/internal/store"
)

// Orchestrator wires the agents into the query DAG:
//
//	loadContext → resolveIntent → {sqlSearch, statsCompute, columnsList}
//	→ sqlAnswer → hybridSearch → generate
//
// The three middle nodes are independent and run in parallel.
type Orchestrator struct {
	store      *store.SQLiteStore
	classifier *intent.Classifier
	generator  *sqlgen.Generator
	statsEng   *stats.Engine
	retriever  *search.Retriever
	profiles   *profile.Builder
	client     llm.Client

	sqlEnabled bool
}

// New builds an orchestrator. client must be non-nil; the others may be nil
// only if the corresponding intents never resolve.
func New(
	s *store.SQLiteStore,
	classifier *intent.Classifier,
	generator *sqlgen.Generator,
	statsEng *stats.Engine,
	retriever *search.Retriever,
	profiles *profile.Builder,
	client llm.Client,
	sqlEnabled bool,
) *Orchestrator {
	return &Orchestrator{
		store:      s,
		classifier: classifier,
		generator:  generator,
		statsEng:   statsEng,
		retriever:  retriever,
		profiles:   profiles,
		client:     client,
		sqlEnabled: sqlEnabled,
	}
}

// Run executes the DAG for one question and returns the assembled answer
// with provenance. When state.ChatID is set the user and assistant turns are
// appended to the chat.
func (o *Orchestrator) Run(ctx context.Context, st State) (*Response, error) {
	st = st.Apply(o.loadContext(ctx, st))
	st = st.Apply(o.resolveIntent(ctx, st))

	mid, err := o.runParallel(ctx, st)
	if err != nil {
		return nil, err
	}
	for _, d := range mid {
		st = st.Apply(d)
	}

	st = st.Apply(o.sqlAnswer(ctx, st))
	st = st.Apply(o.hybridSearch(ctx, st))

	st, err = o.generate(ctx, st)
	if err != nil {
		return nil, err
	}

	if st.ChatID != "" {
		o.appendHistory(ctx, st)
	}

	return &Response{
		Answer:         st.Answer,
		Provenance:     o.provenance(st),
		ResolvedIntent: st.Intent,
	}, nil
}

// loadContext fetches the cached session profile. Profile failures are
// swallowed: answering without context beats not answering.
func (o *Orchestrator) loadContext(ctx context.Context, st State) Delta {
	if st.SessionID == "" || o.profiles == nil {
		return Delta{}
	}
	p, err := o.profiles.Get(ctx, st.SessionID)
	if err != nil {
		slog.Warn("profile load failed", slog.String("error", err.Error()))
		return Delta{}
	}
	return Delta{Profile: strPtr(p)}
}

// resolveIntent classifies the question, then applies the routing overrides:
// SQL disabled downgrades sql/both to hybrid; none with ingested data
// upgrades to hybrid so the data is at least searched.
func (o *Orchestrator) resolveIntent(ctx context.Context, st State) Delta {
	mode := o.classifier.Classify(ctx, st.Question, intent.Options{
		Override:  st.Override,
		SessionID: st.SessionID,
	})

	if !o.sqlEnabled && (mode == intent.ModeSQL || mode == intent.ModeBoth) {
		slog.Debug("sql disabled, downgrading intent", slog.String("from", string(mode)))
		mode = intent.ModeHybrid
	}
	if mode == intent.ModeNone && st.SessionID != "" {
		if ok, err := o.store.HasSessionData(ctx, st.SessionID); err == nil && ok {
			mode = intent.ModeHybrid
		}
	}
	return Delta{Intent: modePtr(mode)}
}

// runParallel executes the independent middle nodes. Each node owns its
// failure handling; only context cancellation aborts the group.
func (o *Orchestrator) runParallel(ctx context.Context, st State) ([]Delta, error) {
	g, gctx := errgroup.WithContext(ctx)
	deltas := make([]Delta, 3)

	g.Go(func() error {
		deltas[0] = o.sqlSearch(gctx, st)
		return gctx.Err()
	})
	g.Go(func() error {
		deltas[1] = o.statsCompute(gctx, st)
		return gctx.Err()
	})
	g.Go(func() error {
		deltas[2] = o.columnsList(gctx, st)
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return deltas, nil
}

// sqlSearch runs the generation-validation-execution pipeline. Every failure
// mode is an Outcome, so downstream narration always has something to say.
func (o *Orchestrator) sqlSearch(ctx context.Context, st State) Delta {
	if st.Intent != intent.ModeSQL && st.Intent != intent.ModeBoth {
		return Delta{}
	}
	if !o.sqlEnabled || o.generator == nil || st.SessionID == "" {
		return Delta{}
	}
	return Delta{SQLOutcome: o.generator.Run(ctx, st.Question, st.SessionID)}
}

func (o *Orchestrator) statsCompute(ctx context.Context, st State) Delta {
	if st.Intent != intent.ModeStats || o.statsEng == nil || st.SessionID == "" {
		return Delta{}
	}
	report, err := o.statsEng.Compute(ctx, st.SessionID)
	if err != nil {
		slog.Warn("stats computation failed", slog.String("error", err.Error()))
		return Delta{}
	}
	return Delta{StatsSummary: strPtr(stats.Summarize(report))}
}

func (o *Orchestrator) columnsList(ctx context.Context, st State) Delta {
	if st.Intent != intent.ModeColumns || st.SessionID == "" {
		return Delta{}
	}
	colsMap, order, err := profile.Columns(ctx, o.store, st.SessionID)
	if err != nil {
		slog.Warn("columns listing failed", slog.String("error", err.Error()))
		return Delta{}
	}
	return Delta{ColumnsSummary: strPtr(profile.SummarizeColumns(colsMap, order))}
}

// sqlAnswer narrates the SQL outcome. It runs whenever an outcome exists —
// errors included, so the user learns why the query path produced nothing.
func (o *Orchestrator) sqlAnswer(ctx context.Context, st State) Delta {
	if st.SQLOutcome == nil {
		return Delta{}
	}
	answer, err := sqlgen.Narrate(ctx, o.client, st.Question, st.SQLOutcome, st.Profile)
	if err != nil {
		slog.Warn("sql narration failed", slog.String("error", err.Error()))
		return Delta{}
	}
	return Delta{SQLAnswer: strPtr(answer)}
}

func (o *Orchestrator) hybridSearch(ctx context.Context, st State) Delta {
	if st.Intent != intent.ModeHybrid && st.Intent != intent.ModeBoth {
		return Delta{}
	}
	if o.retriever == nil || st.SessionID == "" {
		return Delta{}
	}
	results, err := o.retriever.SearchK(ctx, st.SessionID, st.Question, st.TopK)
	if err != nil {
		slog.Warn("hybrid search failed", slog.String("error", err.Error()))
		return Delta{}
	}
	return Delta{Retrieved: results}
}

// generate assembles the evidence sections in fixed order and makes the one
// generation call of the pipeline.
func (o *Orchestrator) generate(ctx context.Context, st State) (State, error) {
	var sections []string
	if st.Profile != "" {
		sections = append(sections, "[DB]\n"+st.Profile)
	}
	if st.StatsSummary != "" {
		sections = append(sections, "[STATS]\n"+st.StatsSummary)
	}
	if st.ColumnsSummary != "" {
		sections = append(sections, "[COLUMNS]\n"+st.ColumnsSummary)
	}
	if st.SQLAnswer != "" {
		sections = append(sections, "[SQL_ANSWER]\n"+st.SQLAnswer)
	}
	if st.SQLOutcome != nil {
		sections = append(sections, "[SQL_RAW]\n"+sqlgen.Summarize(st.SQLOutcome))
	}
	if len(st.Retrieved) > 0 {
		var docs []string
		for _, r := range st.Retrieved {
			docs = append(docs, r.Text)
		}
		sections = append(sections, "[DOCS]\n"+strings.Join(docs, "\n"))
	}

	userContent := st.Question
	if len(sections) > 0 {
		userContent = strings.Join(sections, "\n\n") + "\n\nQuestion:\n" + st.Question
	}

	answer, err := o.client.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You are a helpful analyst. Use the provided context where relevant."},
		{Role: "user", Content: userContent},
	})
	if err != nil {
		return st, fmt.Errorf("generate answer: %w", err)
	}
	return st.Apply(Delta{Answer: strPtr(answer)}), nil
}

// provenance tags the evidence that reached the answer.
func (o *Orchestrator) provenance(st State) []Provenance {
	var out []Provenance
	if st.SQLOutcome != nil {
		out = append(out, Provenance{Source: SourceSQL, Text: sqlgen.Summarize(st.SQLOutcome)})
	}
	if st.SQLAnswer != "" {
		out = append(out, Provenance{Source: SourceSQLAnswer, Text: st.SQLAnswer})
	}
	if st.StatsSummary != "" {
		out = append(out, Provenance{Source: SourceStats, Text: st.StatsSummary})
	}
	if st.ColumnsSummary != "" {
		out = append(out, Provenance{Source: SourceColumns, Text: st.ColumnsSummary})
	}
	for _, r := range st.Retrieved {
		source := r.File
		if source == "" {
			source = "unknown"
		}
		out = append(out, Provenance{Source: source, Text: r.Text})
	}
	return out
}

// appendHistory persists the exchange. History failures never fail the query.
func (o *Orchestrator) appendHistory(ctx context.Context, st State) {
	if err := o.store.AppendMessage(ctx, st.ChatID, "user", st.Question); err != nil {
		slog.Warn("append user message failed", slog.String("error", err.Error()))
		return
	}
	if err := o.store.AppendMessage(ctx, st.ChatID, "assistant", st.Answer); err != nil {
		slog.Warn("append assistant message failed", slog.String("error", err.Error()))
	}
}
