package database

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the review state of a public submission.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

var (
	// ErrRequestNotFound is returned when no request matches.
	ErrRequestNotFound = errors.New("request not found")

	// ErrStatusConflict is returned when a request is not in the expected
	// state for a transition (e.g. approving an already rejected request).
	ErrStatusConflict = errors.New("request status does not allow this change")
)

// Request is a public submission that matched a cluster and awaits review.
type Request struct {
	ID          string        `json:"request_id"`
	Email       string        `json:"email"`
	ClusterID   string        `json:"cluster_id"`
	ImagePath   string        `json:"image_path"`
	Status      RequestStatus `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// RequestStats counts requests per status.
type RequestStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Add increments the counter for status by n.
func (s *RequestStats) Add(status RequestStatus, n int) {
	s.Total += n
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusApproved:
		s.Approved += n
	case StatusRejected:
		s.Rejected += n
	}
}

// NewRequestID returns an id of the form REQ_20240131_142501_1a2b3c4d.
func NewRequestID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "REQ_" + now.UTC().Format("20060102_150405") + "_" + suffix
}

// StoredSession is an admin session persisted across restarts.
type StoredSession struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}
