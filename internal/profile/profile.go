// Package profile builds the compact session description injected as [DB]
// context into prompts, and the filename-to-columns listing.
package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaewoo-dev/datachat/internal/store"
)

// Builder derives session profiles from the relational store and caches them
// in the session_profiles table.
type Builder struct {
	store     *store.SQLiteStore
	maxTokens int
}

// NewBuilder creates a profile builder. maxTokens bounds the profile with a
// crude 4-chars-per-token budget, floored at 256 characters.
func NewBuilder(s *store.SQLiteStore, maxTokens int) *Builder {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &Builder{store: s, maxTokens: maxTokens}
}

func (b *Builder) charBudget() int {
	budget := b.maxTokens * 4
	if budget < 256 {
		budget = 256
	}
	return budget
}

// Build renders the session profile from current data: a session header plus
// one line per file with row count and typed columns.
func (b *Builder) Build(ctx context.Context, sessionID string) (string, error) {
	budget := b.charBudget()

	files, err := b.store.ListFiles(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Sprintf("Session: %s\n(no indexed files yet)", sessionID), nil
	}

	lines := []string{fmt.Sprintf("Session: %s", sessionID)}
	used := len(lines[0])
	for _, f := range files {
		cols, err := b.store.ColumnsForFile(ctx, sessionID, f.ID)
		if err != nil {
			return "", fmt.Errorf("columns for %s: %w", f.Filename, err)
		}
		parts := make([]string, 0, len(cols))
		for i, c := range cols {
			if i >= 20 {
				break
			}
			parts = append(parts, fmt.Sprintf("%s:%s", c.Name, c.InferredType))
		}

		count, err := b.store.RowCount(ctx, sessionID, f.ID)
		if err != nil {
			return "", fmt.Errorf("row count for %s: %w", f.Filename, err)
		}

		line := fmt.Sprintf("- File %s rows=%d cols=[%s]", f.Filename, count, strings.Join(parts, ", "))
		lines = append(lines, line)
		used += len(line)
		if used > budget {
			break
		}
	}

	out := strings.Join(lines, "\n")
	if len(out) > budget {
		out = out[:budget-3] + "..."
	}
	return out, nil
}

// Refresh rebuilds the profile and overwrites the cached copy.
func (b *Builder) Refresh(ctx context.Context, sessionID string) (string, error) {
	profile, err := b.Build(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if err := b.store.SaveProfile(ctx, sessionID, profile); err != nil {
		return "", fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// Get returns the cached profile, building and caching it on a miss.
func (b *Builder) Get(ctx context.Context, sessionID string) (string, error) {
	cached, err := b.store.GetProfile(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if cached != "" {
		return cached, nil
	}
	return b.Refresh(ctx, sessionID)
}

// Columns returns the filename-to-ordered-column-names mapping for the
// session, with filenames in ingestion order.
func Columns(ctx context.Context, s *store.SQLiteStore, sessionID string) (map[string][]string, []string, error) {
	files, err := s.ListFiles(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	out := make(map[string][]string, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		cols, err := s.ColumnsForFile(ctx, sessionID, f.ID)
		if err != nil {
			return nil, nil, err
		}
		list := make([]string, 0, len(cols))
		for _, c := range cols {
			list = append(list, c.Name)
		}
		out[f.Filename] = list
		names = append(names, f.Filename)
	}
	return out, names, nil
}

// SummarizeColumns renders one line per file: "<file>: a, b, c".
func SummarizeColumns(colsMap map[string][]string, order []string) string {
	if len(order) == 0 {
		return "No columns found for this session."
	}
	lines := make([]string, 0, len(order))
	for _, fname := range order {
		lines = append(lines, fmt.Sprintf("%s: %s", fname, strings.Join(colsMap[fname], ", ")))
	}
	return strings.Join(lines, "\n")
}
