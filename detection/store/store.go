// Package store archives detection reports per session so past diagnoses
// remain queryable after the conversation moved on.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/neuroleaf/neuroleaf/detection"
)

// Archive persists detection reports, newest first.
type Archive interface {
	// Save appends a report to the session's archive.
	Save(ctx context.Context, sessionID string, report *detection.Report) error

	// History returns the session's reports, most recent first.
	History(ctx context.Context, sessionID string) ([]*detection.Report, error)
}

// InMemoryArchive keeps reports in process memory. It is the default when
// no MongoDB URI is configured.
type InMemoryArchive struct {
	mu      sync.RWMutex
	reports map[string][]*detection.Report
}

// NewInMemoryArchive creates an empty in-memory archive.
func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{
		reports: make(map[string][]*detection.Report),
	}
}

// Save appends a report to the session's archive.
func (a *InMemoryArchive) Save(ctx context.Context, sessionID string, report *detection.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports[sessionID] = append(a.reports[sessionID], report)
	return nil
}

// History returns the session's reports, most recent first.
func (a *InMemoryArchive) History(ctx context.Context, sessionID string) ([]*detection.Report, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stored := a.reports[sessionID]
	out := make([]*detection.Report, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
