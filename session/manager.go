package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/neuroleaf/neuroleaf/detection"
	errs "github.com/neuroleaf/neuroleaf/errors"
	"github.com/neuroleaf/neuroleaf/message"
	"github.com/neuroleaf/neuroleaf/pkg/logging"
)

const defaultMaxHistoryTokens = 4000

// Manager serialises access to session records. Turns for the same session
// run one at a time under a per-key mutex; different sessions proceed
// independently. The manager also enforces the history token budget after
// every update.
type Manager struct {
	store            Store
	counter          TokenCounter
	maxHistoryTokens int
	logger           *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ManagerOption customizes the manager.
type ManagerOption func(*Manager)

// WithMaxHistoryTokens bounds the conversational memory kept per session.
func WithMaxHistoryTokens(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxHistoryTokens = n
		}
	}
}

// WithTokenCounter overrides the token counter, mainly for tests.
func WithTokenCounter(counter TokenCounter) ManagerOption {
	return func(m *Manager) {
		if counter != nil {
			m.counter = counter
		}
	}
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:            store,
		maxHistoryTokens: defaultMaxHistoryTokens,
		logger:           logging.WithComponent("session"),
		locks:            make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.counter == nil {
		m.counter = NewTokenCounter()
	}
	return m
}

func (m *Manager) lock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Update loads (or creates) the session, runs fn under the session's lock,
// trims the history to the token budget, and saves the result. fn sees a
// private copy; aborting with an error leaves the stored record untouched.
func (m *Manager) Update(ctx context.Context, id string, fn func(context.Context, *Record) error) (*Record, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required: %w", errs.ErrInvalidInput)
	}

	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	record, err := m.store.Load(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrSessionNotFound):
		record = NewRecord(id)
	default:
		return nil, err
	}

	if err := fn(ctx, record); err != nil {
		return nil, err
	}

	record.History = m.trimHistory(record.History)
	if err := m.store.Save(ctx, record); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// Get returns a copy of the session record without creating one.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	return m.store.Load(ctx, id)
}

// ApplyDetection installs a new detection outcome on the session. A changed
// diagnosis wipes the history first so conversational memory never mixes
// guidance for two different diseases; the fresh system context is then
// injected by the next turn.
func (m *Manager) ApplyDetection(ctx context.Context, id string, report *detection.Report) (*Record, error) {
	if report == nil {
		return nil, fmt.Errorf("detection report is required: %w", errs.ErrInvalidInput)
	}

	return m.Update(ctx, id, func(ctx context.Context, record *Record) error {
		if record.DetectedDisease != "" && record.DetectedDisease != report.Diagnosis {
			m.logger.Info("diagnosis changed, resetting session history",
				"session", id, "previous", record.DetectedDisease, "current", report.Diagnosis)
			record.History = nil
		}
		record.DetectedDisease = report.Diagnosis
		record.DetectionReport = report
		return nil
	})
}

// trimHistory drops the oldest user/assistant messages until the history
// fits the token budget. The system message, when present, is always kept.
func (m *Manager) trimHistory(history []*message.Message) []*message.Message {
	if len(history) == 0 {
		return history
	}

	var system *message.Message
	rest := make([]*message.Message, 0, len(history))
	for _, msg := range history {
		if system == nil && msg.Role == message.RoleSystem {
			system = msg
			continue
		}
		rest = append(rest, msg)
	}

	budget := m.maxHistoryTokens
	if system != nil {
		budget -= m.counter.Count(system.Content)
	}

	total := 0
	cut := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		cost := m.counter.Count(rest[i].Content)
		if total+cost > budget {
			break
		}
		total += cost
		cut = i
	}

	if cut > 0 {
		m.logger.Debug("history trimmed", "dropped", cut, "kept", len(rest)-cut)
	}

	trimmed := rest[cut:]
	if system == nil {
		return trimmed
	}
	return append([]*message.Message{system}, trimmed...)
}
