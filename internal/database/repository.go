package database

import (
	"context"
	"time"
)

// RequestReader provides read-only access to the request ledger
type RequestReader interface {
	// GetRequest returns a request by id, or ErrRequestNotFound
	GetRequest(ctx context.Context, id string) (*Request, error)
	// ListRequests returns requests newest first; an empty status lists all
	ListRequests(ctx context.Context, status RequestStatus, limit int) ([]Request, error)
	// RequestStats counts requests grouped by status
	RequestStats(ctx context.Context) (RequestStats, error)
}

// RequestWriter provides write access to the request ledger
type RequestWriter interface {
	RequestReader

	// CreateRequest stores a new request
	CreateRequest(ctx context.Context, req *Request) error

	// TransitionRequest moves a request from one status to another. It fails
	// with ErrStatusConflict when the request is not currently in from.
	TransitionRequest(ctx context.Context, id string, from, to RequestStatus) error
}

// SessionStore persists admin sessions so they survive restarts
type SessionStore interface {
	SaveSession(ctx context.Context, s StoredSession) error
	// GetSession returns nil when the session is missing or expired
	GetSession(ctx context.Context, id string) (*StoredSession, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Ledger is a complete storage backend.
type Ledger interface {
	RequestWriter
	SessionStore
	Close() error
}
