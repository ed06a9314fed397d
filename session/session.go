// Package session holds the per-conversation state: the message history,
// the sticky detected disease, and the most recent detection report.
// Sessions are volatile by default; the Redis store adds durability with a
// bounded TTL.
package session

import (
	"context"
	"time"

	"github.com/neuroleaf/neuroleaf/detection"
	"github.com/neuroleaf/neuroleaf/message"
)

// Record is one session's state, keyed by an opaque caller-supplied ID.
type Record struct {
	ID              string             `json:"id"`
	DetectedDisease string             `json:"detected_disease,omitempty"`
	DetectionReport *detection.Report  `json:"detection_report,omitempty"`
	History         []*message.Message `json:"history"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// NewRecord creates an empty session record.
func NewRecord(id string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so stores never hand out aliased history.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.History = message.CloneMessages(r.History)
	if r.DetectionReport != nil {
		report := *r.DetectionReport
		out.DetectionReport = &report
	}
	return &out
}

// SystemContext renders the detection context for this session, or ""
// when nothing has been detected yet.
func (r *Record) SystemContext() string {
	if r.DetectionReport == nil {
		return ""
	}
	return r.DetectionReport.SystemContext()
}

// Store persists session records. Implementations must allow concurrent
// sessions to mutate independently; serialising turns within one session
// is the Manager's job.
type Store interface {
	// Save persists a session record.
	Save(ctx context.Context, record *Record) error

	// Load returns the record for id, or errors.ErrSessionNotFound.
	Load(ctx context.Context, id string) (*Record, error)

	// Delete removes a session record.
	Delete(ctx context.Context, id string) error

	// List returns all session IDs.
	List(ctx context.Context) ([]string, error)
}
