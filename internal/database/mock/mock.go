// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

// MockLedger is an in-memory database.Ledger
type MockLedger struct {
	mu       sync.RWMutex
	requests map[string]database.Request
	sessions map[string]database.StoredSession
	closed   bool

	// Error injection
	CreateError     error
	GetError        error
	ListError       error
	StatsError      error
	TransitionError error
	SessionError    error
}

var _ database.Ledger = (*MockLedger)(nil)

// NewMockLedger creates a new empty mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{
		requests: make(map[string]database.Request),
		sessions: make(map[string]database.StoredSession),
	}
}

// AddRequest seeds a request without going through CreateRequest
func (m *MockLedger) AddRequest(req database.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
}

// CreateRequest stores a new request
func (m *MockLedger) CreateRequest(ctx context.Context, req *database.Request) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.ID]; exists {
		return fmt.Errorf("create request: duplicate id %s", req.ID)
	}
	m.requests[req.ID] = *req
	return nil
}

// GetRequest retrieves a request by id
func (m *MockLedger) GetRequest(ctx context.Context, id string) (*database.Request, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, database.ErrRequestNotFound
	}
	return &req, nil
}

// ListRequests returns requests newest first
func (m *MockLedger) ListRequests(ctx context.Context, status database.RequestStatus, limit int) ([]database.Request, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	if limit <= 0 {
		limit = database.DefaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []database.Request{}
	for _, req := range m.requests {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RequestStats counts requests per status
func (m *MockLedger) RequestStats(ctx context.Context) (database.RequestStats, error) {
	if m.StatsError != nil {
		return database.RequestStats{}, m.StatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stats database.RequestStats
	for _, req := range m.requests {
		stats.Add(req.Status, 1)
	}
	return stats, nil
}

// TransitionRequest changes status if the request is currently in from
func (m *MockLedger) TransitionRequest(ctx context.Context, id string, from, to database.RequestStatus) error {
	if m.TransitionError != nil {
		return m.TransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return database.ErrRequestNotFound
	}
	if req.Status != from {
		return database.ErrStatusConflict
	}
	req.Status = to
	m.requests[id] = req
	return nil
}

// SaveSession stores a session
func (m *MockLedger) SaveSession(ctx context.Context, s database.StoredSession) error {
	if m.SessionError != nil {
		return m.SessionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// GetSession returns a live session or nil
func (m *MockLedger) GetSession(ctx context.Context, id string) (*database.StoredSession, error) {
	if m.SessionError != nil {
		return nil, m.SessionError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return &s, nil
}

// DeleteSession removes a session
func (m *MockLedger) DeleteSession(ctx context.Context, id string) error {
	if m.SessionError != nil {
		return m.SessionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpiredSessions removes sessions expired at now
func (m *MockLedger) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	if m.SessionError != nil {
		return 0, m.SessionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Close marks the ledger closed
func (m *MockLedger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockLedger) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
