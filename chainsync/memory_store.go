package chainsync

import (
	"context"
	"sync"
)

// MemoryCursorStore keeps cursors in process memory.
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]Cursor
}

var _ CursorStore = (*MemoryCursorStore)(nil)

func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]Cursor)}
}

func (s *MemoryCursorStore) LoadCursor(ctx context.Context, source string) (Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[source]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (s *MemoryCursorStore) SaveCursor(ctx context.Context, source string, cursor Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[source] = cursor.Clone()
	return nil
}
