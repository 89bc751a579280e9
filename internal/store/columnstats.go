package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ColumnCounts bundles the null/non-null/distinct counts of one column.
type ColumnCounts struct {
	NonNull  int
	Null     int
	Distinct int
}

// NumericAggregates carries min/max/avg of a numeric column. Valid is false
// when the column has no non-null values.
type NumericAggregates struct {
	Min   float64
	Max   float64
	Avg   float64
	Valid bool
}

// ColumnCounts computes null, non-null and distinct value counts for one
// (file, column) pair. Empty strings count as null.
func (s *SQLiteStore) ColumnCounts(ctx context.Context, sessionID string, key ColumnKey) (ColumnCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ColumnCounts{}, fmt.Errorf("store is closed")
	}

	var c ColumnCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN value_text IS NOT NULL AND value_text <> '' THEN 1 END),
			COUNT(CASE WHEN value_text IS NULL OR value_text = '' THEN 1 END),
			COUNT(DISTINCT CASE WHEN value_text IS NOT NULL AND value_text <> '' THEN value_text END)
		 FROM row_kv WHERE session_id = ? AND file_id = ? AND col_name = ?`,
		sessionID, key.FileID, key.Name).Scan(&c.NonNull, &c.Null, &c.Distinct)
	return c, err
}

// TopValues returns the column's most frequent non-null values, ties broken
// by value for stable output.
func (s *SQLiteStore) TopValues(ctx context.Context, sessionID string, key ColumnKey, limit int) ([]ValueCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT value_text, COUNT(1) AS n FROM row_kv
		 WHERE session_id = ? AND file_id = ? AND col_name = ?
		   AND value_text IS NOT NULL AND value_text <> ''
		 GROUP BY value_text ORDER BY n DESC, value_text LIMIT ?`,
		sessionID, key.FileID, key.Name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}

// NumericAggregates computes min/max/avg over the column's non-null values
// cast to REAL. Callers gate this on the column's inferred type.
func (s *SQLiteStore) NumericAggregates(ctx context.Context, sessionID string, key ColumnKey) (NumericAggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return NumericAggregates{}, fmt.Errorf("store is closed")
	}

	var minV, maxV, avgV sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(CAST(value_text AS REAL)), MAX(CAST(value_text AS REAL)), AVG(CAST(value_text AS REAL))
		 FROM row_kv
		 WHERE session_id = ? AND file_id = ? AND col_name = ?
		   AND value_text IS NOT NULL AND value_text <> ''`,
		sessionID, key.FileID, key.Name).Scan(&minV, &maxV, &avgV)
	if err != nil {
		return NumericAggregates{}, err
	}
	if !avgV.Valid {
		return NumericAggregates{}, nil
	}
	return NumericAggregates{Min: minV.Float64, Max: maxV.Float64, Avg: avgV.Float64, Valid: true}, nil
}
