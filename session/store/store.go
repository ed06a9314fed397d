// Package store provides session persistence backends: a process-local
// in-memory store and a Redis store for deployments that survive restarts.
package store

import (
	"context"
	"fmt"
	"sync"

	errs "github.com/neuroleaf/neuroleaf/errors"
	"github.com/neuroleaf/neuroleaf/session"
)

// MemoryStore keeps session records in process memory. Records vanish on
// restart, matching the default volatility contract.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*session.Record
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*session.Record),
	}
}

// Save persists a session record.
func (s *MemoryStore) Save(ctx context.Context, record *session.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("session record cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

// Load returns the record for id.
func (s *MemoryStore) Load(ctx context.Context, id string) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, errs.ErrSessionNotFound)
	}
	return record.Clone(), nil
}

// Delete removes a session record.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("session %s: %w", id, errs.ErrSessionNotFound)
	}
	delete(s.records, id)
	return nil
}

// List returns all session IDs.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}
