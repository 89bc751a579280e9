// Package stats computes per-column descriptive statistics over a session's
// ingested tables.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jaewoo-dev/datachat/internal/store"
)

// ColumnStats describes one (file, column) pair. Min/Max/Avg are present only
// for numeric columns with at least one non-null value; HasNumeric
// distinguishes "not applicable" from zero.
type ColumnStats struct {
	FileID        int64
	Name          string
	InferredType  string
	NonNullCount  int
	NullCount     int
	DistinctCount int
	TopValues     []store.ValueCount

	HasNumeric bool
	Min        float64
	Max        float64
	Avg        float64
}

// Key returns the map key "<file_id>:<name>".
func (c *ColumnStats) Key() string {
	return fmt.Sprintf("%d:%s", c.FileID, c.Name)
}

// Report is the full statistics result for a session.
type Report struct {
	TotalRows int
	Columns   map[string]*ColumnStats
}

// Engine computes statistics from the relational store.
type Engine struct {
	store *store.SQLiteStore
}

// NewEngine creates a statistics engine.
func NewEngine(s *store.SQLiteStore) *Engine {
	return &Engine{store: s}
}

// Compute iterates the distinct (file, column) pairs of the session and
// issues independent aggregate queries per column.
func (e *Engine) Compute(ctx context.Context, sessionID string) (*Report, error) {
	totalRows, err := e.store.RowCount(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	keys, err := e.store.DistinctColumns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	report := &Report{
		TotalRows: totalRows,
		Columns:   make(map[string]*ColumnStats, len(keys)),
	}
	for _, key := range keys {
		cs, err := e.computeColumn(ctx, sessionID, key)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", key.Name, err)
		}
		report.Columns[cs.Key()] = cs
	}
	return report, nil
}

func (e *Engine) computeColumn(ctx context.Context, sessionID string, key store.ColumnKey) (*ColumnStats, error) {
	counts, err := e.store.ColumnCounts(ctx, sessionID, key)
	if err != nil {
		return nil, err
	}
	top, err := e.store.TopValues(ctx, sessionID, key, 5)
	if err != nil {
		return nil, err
	}

	cs := &ColumnStats{
		FileID:        key.FileID,
		Name:          key.Name,
		InferredType:  key.InferredType,
		NonNullCount:  counts.NonNull,
		NullCount:     counts.Null,
		DistinctCount: counts.Distinct,
		TopValues:     top,
	}

	if store.IsNumericType(strings.ToLower(key.InferredType)) {
		agg, err := e.store.NumericAggregates(ctx, sessionID, key)
		if err != nil {
			return nil, err
		}
		if agg.Valid {
			cs.HasNumeric = true
			cs.Min = agg.Min
			cs.Max = agg.Max
			cs.Avg = agg.Avg
		}
	}
	return cs, nil
}

// Summarize renders the report as compact lines for the answer context. At
// most ten columns are listed, ordered by key for determinism.
func Summarize(report *Report) string {
	if report == nil {
		return ""
	}

	lines := []string{fmt.Sprintf("총 행 개수: %d", report.TotalRows)}

	keys := make([]string, 0, len(report.Columns))
	for k := range report.Columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 10 {
		keys = keys[:10]
	}

	for _, k := range keys {
		cs := report.Columns[k]
		line := fmt.Sprintf("- %s: 비결측=%d, 결측=%d, 고유값=%d",
			cs.Name, cs.NonNullCount, cs.NullCount, cs.DistinctCount)

		var tops []string
		for i, tv := range cs.TopValues {
			if i >= 3 {
				break
			}
			tops = append(tops, fmt.Sprintf("%s(%d)", tv.Value, tv.Count))
		}
		if len(tops) > 0 {
			line += ", 상위값=" + strings.Join(tops, ", ")
		}
		if cs.HasNumeric {
			line += fmt.Sprintf(", 평균=%.3f", cs.Avg)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
