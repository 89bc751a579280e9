package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStore persists sessions, file records, column descriptors, row
// records, the key-value row projection, the FTS5 lexical index, session
// profiles and chat history in a single SQLite database.
//
// WAL mode allows concurrent readers while ingestion writes.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteStore opens (or creates) the database at path.
// If path is empty, an in-memory database is created for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingestion_sessions (
		session_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		filename TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_session ON files(session_id);

	CREATE TABLE IF NOT EXISTS schema_columns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		file_id INTEGER NOT NULL,
		col_name TEXT NOT NULL,
		inferred_type TEXT NOT NULL,
		position INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_schema_columns_session ON schema_columns(session_id);
	CREATE INDEX IF NOT EXISTS idx_schema_columns_file ON schema_columns(file_id);

	CREATE TABLE IF NOT EXISTS rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		file_id INTEGER NOT NULL,
		row_index INTEGER,
		data_json TEXT NOT NULL,
		chunk_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_rows_session ON rows(session_id);
	CREATE INDEX IF NOT EXISTS idx_rows_file ON rows(file_id);
	CREATE INDEX IF NOT EXISTS idx_rows_chunk ON rows(chunk_id);

	CREATE TABLE IF NOT EXISTS row_kv (
		session_id TEXT NOT NULL,
		file_id INTEGER NOT NULL,
		row_index INTEGER NOT NULL,
		col_name TEXT NOT NULL,
		value_text TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_row_kv_session ON row_kv(session_id);
	CREATE INDEX IF NOT EXISTS idx_row_kv_session_col ON row_kv(session_id, col_name);
	CREATE INDEX IF NOT EXISTS idx_row_kv_session_col_val ON row_kv(session_id, col_name, value_text);

	CREATE VIRTUAL TABLE IF NOT EXISTS fts_rows USING fts5(
		text,
		session_id UNINDEXED,
		file_id UNINDEXED,
		row_index UNINDEXED,
		chunk_id UNINDEXED,
		tokenize = 'porter'
	);

	CREATE TABLE IF NOT EXISTS session_profiles (
		session_id TEXT PRIMARY KEY,
		db_context TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chats (
		chat_id TEXT PRIMARY KEY,
		title TEXT,
		session_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_updated_at ON chats(updated_at);
	CREATE INDEX IF NOT EXISTS idx_chats_session ON chats(session_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages(chat_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path ("" for in-memory stores).
// The SQL executor opens its own read-only connection against it.
func (s *SQLiteStore) Path() string {
	return s.path
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05") + "Z"
}

// EnsureSession records the session on first use. Idempotent.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ingestion_sessions(session_id, created_at) VALUES (?, ?)`,
		sessionID, nowUTC())
	return err
}

// EnsureFile returns the file id for (session, filename), creating the record
// on first ingestion. Repeat ingestion of the same name reuses the record.
func (s *SQLiteStore) EnsureFile(ctx context.Context, sessionID, filename string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	return s.ensureFileLocked(ctx, sessionID, filename)
}

func (s *SQLiteStore) ensureFileLocked(ctx context.Context, sessionID, filename string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM files WHERE session_id = ? AND filename = ?`,
		sessionID, filename).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("look up file: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files(session_id, filename) VALUES (?, ?)`,
		sessionID, filename)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	return res.LastInsertId()
}

// ReplaceColumns deletes and reinserts the column descriptors for a file.
// Descriptors are never merged; re-analysis always produces a full set.
func (s *SQLiteStore) ReplaceColumns(ctx context.Context, sessionID, filename string, cols []ColumnSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ingestion_sessions(session_id, created_at) VALUES (?, ?)`,
		sessionID, nowUTC()); err != nil {
		return err
	}
	fileID, err := s.ensureFileLocked(ctx, sessionID, filename)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_columns WHERE session_id = ? AND file_id = ?`,
		sessionID, fileID); err != nil {
		return fmt.Errorf("clear columns: %w", err)
	}
	for _, col := range cols {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_columns(session_id, file_id, col_name, inferred_type, position) VALUES (?, ?, ?, ?, ?)`,
			sessionID, fileID, col.Name, col.InferredType, col.Position); err != nil {
			return fmt.Errorf("insert column %s: %w", col.Name, err)
		}
	}
	return tx.Commit()
}

// StoreChunks persists row records, the 1:1 lexical entries, and the
// key-value projection for chunks carrying structured data.
// Returns the number of chunks inserted.
func (s *SQLiteStore) StoreChunks(ctx context.Context, sessionID string, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ingestion_sessions(session_id, created_at) VALUES (?, ?)`,
		sessionID, nowUTC()); err != nil {
		return 0, err
	}

	fileIDs := make(map[string]int64)
	for _, ch := range chunks {
		name := ch.File
		if name == "" {
			name = "unknown.txt"
		}
		if _, ok := fileIDs[name]; !ok {
			id, err := s.ensureFileLocked(ctx, sessionID, name)
			if err != nil {
				return 0, err
			}
			fileIDs[name] = id
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rowStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rows(session_id, file_id, row_index, data_json, chunk_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer rowStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_rows(text, session_id, file_id, row_index, chunk_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer ftsStmt.Close()

	kvStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO row_kv(session_id, file_id, row_index, col_name, value_text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer kvStmt.Close()

	inserted := 0
	for _, ch := range chunks {
		name := ch.File
		if name == "" {
			name = "unknown.txt"
		}
		fileID := fileIDs[name]

		var rowIndex any
		if ch.RowIndex >= 0 {
			rowIndex = ch.RowIndex
		}
		payload := encodeRowPayload(ch)
		if _, err := rowStmt.ExecContext(ctx, sessionID, fileID, rowIndex, payload, ch.ID); err != nil {
			return inserted, fmt.Errorf("insert row: %w", err)
		}
		if _, err := ftsStmt.ExecContext(ctx, ch.Text, sessionID, fileID, rowIndex, ch.ID); err != nil {
			return inserted, fmt.Errorf("insert lexical entry: %w", err)
		}
		// Key-value projection exists only once per original row.
		if ch.Structured != nil && ch.RowIndex >= 0 {
			for col, value := range ch.Structured {
				var v any
				if value != "" {
					v = value
				}
				if _, err := kvStmt.ExecContext(ctx, sessionID, fileID, ch.RowIndex, col, v); err != nil {
					return inserted, fmt.Errorf("insert projection: %w", err)
				}
			}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// HasSessionData reports whether any file or row exists for the session.
func (s *SQLiteStore) HasSessionData(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM files WHERE session_id = ? LIMIT 1`, sessionID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM rows WHERE session_id = ? LIMIT 1`, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// HasTabularData reports whether any column descriptors exist for the session.
func (s *SQLiteStore) HasTabularData(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM schema_columns WHERE session_id = ? LIMIT 1`, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ListFiles returns the session's file records ordered by id.
func (s *SQLiteStore) ListFiles(ctx context.Context, sessionID string) ([]*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename FROM files WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		f := &FileRecord{SessionID: sessionID}
		if err := rows.Scan(&f.ID, &f.Filename); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListSessions returns all known session ids, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM ingestion_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ColumnsForFile returns the file's column descriptors ordered by position.
func (s *SQLiteStore) ColumnsForFile(ctx context.Context, sessionID string, fileID int64) ([]*ColumnDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT col_name, inferred_type, position FROM schema_columns
		 WHERE session_id = ? AND file_id = ? ORDER BY position`,
		sessionID, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ColumnDescriptor
	for rows.Next() {
		c := &ColumnDescriptor{SessionID: sessionID, FileID: fileID}
		if err := rows.Scan(&c.Name, &c.InferredType, &c.Position); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DistinctColumns returns the distinct (file, column) pairs recorded for the
// session, ordered by file then column name.
func (s *SQLiteStore) DistinctColumns(ctx context.Context, sessionID string) ([]ColumnKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT file_id, col_name, inferred_type FROM schema_columns
		 WHERE session_id = ? ORDER BY file_id, col_name`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ColumnKey
	for rows.Next() {
		var k ColumnKey
		if err := rows.Scan(&k.FileID, &k.Name, &k.InferredType); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RowCount returns the number of row records for a session, optionally
// restricted to one file (fileID > 0).
func (s *SQLiteStore) RowCount(ctx context.Context, sessionID string, fileID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	var err error
	if fileID > 0 {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM rows WHERE session_id = ? AND file_id = ?`,
			sessionID, fileID).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM rows WHERE session_id = ?`, sessionID).Scan(&count)
	}
	return count, err
}

// Close closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// encodeRowPayload builds the data_json payload for a row record. Structured
// values are embedded so generated SQL can json_extract individual cells.
func encodeRowPayload(ch Chunk) string {
	payload := map[string]any{
		"text": ch.Text,
		"file": ch.File,
	}
	if ch.Structured != nil {
		payload["values"] = ch.Structured
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Marshaling strings cannot fail; keep the row rather than drop it.
		return `{"text":""}`
	}
	return string(data)
}
