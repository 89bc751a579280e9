package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// VectorManager hands out one VectorIndex per session and guards the on-disk
// files with an advisory lock so concurrent processes cannot clobber a save.
type VectorManager struct {
	mu      sync.Mutex
	baseDir string
	config  VectorIndexConfig
	indexes map[string]*VectorIndex
	locks   map[string]*flock.Flock
}

// NewVectorManager creates a manager rooted at baseDir.
func NewVectorManager(baseDir string, cfg VectorIndexConfig) *VectorManager {
	return &VectorManager{
		baseDir: baseDir,
		config:  cfg,
		indexes: make(map[string]*VectorIndex),
		locks:   make(map[string]*flock.Flock),
	}
}

func (m *VectorManager) indexPath(sessionID string) string {
	return filepath.Join(m.baseDir, sessionID, "vectors.hnsw")
}

// ForSession returns the session's index, loading it from disk when a saved
// copy exists and creating a fresh one otherwise.
func (m *VectorManager) ForSession(sessionID string) (*VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.indexes[sessionID]; ok {
		return idx, nil
	}

	idx, err := NewVectorIndex(m.config)
	if err != nil {
		return nil, err
	}

	path := m.indexPath(sessionID)
	if _, statErr := os.Stat(path); statErr == nil {
		if err := idx.Load(path); err != nil {
			return nil, fmt.Errorf("load vector index for session %s: %w", sessionID, err)
		}
	}

	m.indexes[sessionID] = idx
	return idx, nil
}

// Save persists the session's index under the advisory lock. A held lock
// (another writer mid-save) is an error, not a wait.
func (m *VectorManager) Save(sessionID string) error {
	m.mu.Lock()
	idx, ok := m.indexes[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	path := m.indexPath(sessionID)
	lock, exists := m.locks[sessionID]
	if !exists {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("create index directory: %w", err)
		}
		lock = flock.New(path + ".lock")
		m.locks[sessionID] = lock
	}
	m.mu.Unlock()

	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("vector index for session %s is locked by another writer", sessionID)
	}
	defer func() { _ = lock.Unlock() }()

	return idx.Save(path)
}

// Close saves and closes every open index, reporting the first error.
func (m *VectorManager) Close() error {
	m.mu.Lock()
	sessions := make([]string, 0, len(m.indexes))
	for id := range m.indexes {
		sessions = append(sessions, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range sessions {
		if err := m.Save(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, idx := range m.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.indexes, id)
	}
	return firstErr
}
