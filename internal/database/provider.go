package database

import (
	"context"
	"errors"
	"sync"
)

var (
	backendMu     sync.RWMutex
	activeLedger  Ledger
	activeBackend string
)

// RegisterBackend makes a ledger the active storage backend. It is called by
// the backend packages so this package does not import them.
func RegisterBackend(name string, ledger Ledger) {
	backendMu.Lock()
	defer backendMu.Unlock()
	activeLedger = ledger
	activeBackend = name
}

// IsInitialized returns whether a backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return activeLedger != nil
}

// BackendName returns the name of the active backend ("postgres", "sqlite").
func BackendName() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return activeBackend
}

// GetLedger returns the active backend.
func GetLedger(ctx context.Context) (Ledger, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if activeLedger == nil {
		return nil, errors.New("request ledger not initialized")
	}
	return activeLedger, nil
}

// CloseBackend closes and unregisters the active backend.
func CloseBackend() error {
	backendMu.Lock()
	defer backendMu.Unlock()
	if activeLedger == nil {
		return nil
	}
	err := activeLedger.Close()
	activeLedger = nil
	activeBackend = ""
	return err
}
