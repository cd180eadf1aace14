// Package handoff implements the cross-surface pending-file store.
//
// One workflow surface can park a single file for another to pick up. The
// consumer only sees the retrieved file, never the storage mechanism; at most
// one file is pending at a time and storing replaces it.
package handoff

import "sync"

// File is a pending file parked for another surface.
type File struct {
	Name string
	Data []byte
}

// Store parks and retrieves a single pending file.
type Store interface {
	// Put parks a file, replacing any pending one.
	Put(f *File)
	// Take removes and returns the pending file, or nil when none is pending.
	Take() *File
	// Clear discards the pending file, if any. Idempotent.
	Clear()
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	pending *File
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Put(f *File) {
	s.mu.Lock()
	s.pending = f
	s.mu.Unlock()
}

func (s *MemoryStore) Take() *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.pending
	s.pending = nil
	return f
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

var _ Store = (*MemoryStore)(nil)
