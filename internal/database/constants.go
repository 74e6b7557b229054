package database

import "time"

// Connection and query limits shared by the backends
const (
	// PingTimeout bounds the connectivity check when a backend is opened
	PingTimeout = 10 * time.Second

	// DefaultListLimit is used when a caller passes a non-positive limit
	DefaultListLimit = 500
)
