package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateChat inserts a new conversation record.
func (s *SQLiteStore) CreateChat(ctx context.Context, chatID, title, sessionID string) (*ChatRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	now := nowUTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chats(chat_id, title, session_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		chatID, title, nullIfEmpty(sessionID), now, now); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &ChatRecord{ChatID: chatID, Title: title, SessionID: sessionID, CreatedAt: now, UpdatedAt: now}, nil
}

// GetChat returns one conversation, or nil when it does not exist.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rec := &ChatRecord{}
	var title, session sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, title, session_id, created_at, updated_at FROM chats WHERE chat_id = ?`,
		chatID).Scan(&rec.ChatID, &title, &session, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Title = title.String
	rec.SessionID = session.String
	return rec, nil
}

// ListChats returns conversations ordered by most recent activity.
func (s *SQLiteStore) ListChats(ctx context.Context, limit int) ([]*ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, title, session_id, created_at, updated_at FROM chats
		 ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ChatRecord
	for rows.Next() {
		rec := &ChatRecord{}
		var title, session sql.NullString
		if err := rows.Scan(&rec.ChatID, &title, &session, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Title = title.String
		rec.SessionID = session.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendMessage stores one conversation turn and bumps the chat's updated_at.
func (s *SQLiteStore) AppendMessage(ctx context.Context, chatID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	now := nowUTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages(chat_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		chatID, role, content, now); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE chat_id = ?`, now, chatID); err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return tx.Commit()
}

// ListMessages returns a chat's messages in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string, limit int) ([]*ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM chat_messages
		 WHERE chat_id = ? ORDER BY id LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ChatMessage
	for rows.Next() {
		m := &ChatMessage{}
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveProfile overwrites the cached session profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, sessionID, dbContext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_profiles(session_id, db_context, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET db_context = excluded.db_context, updated_at = excluded.updated_at`,
		sessionID, dbContext, nowUTC())
	return err
}

// GetProfile returns the cached session profile, or "" when none is stored.
func (s *SQLiteStore) GetProfile(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var dbContext string
	err := s.db.QueryRowContext(ctx,
		`SELECT db_context FROM session_profiles WHERE session_id = ?`, sessionID).Scan(&dbContext)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return dbContext, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
