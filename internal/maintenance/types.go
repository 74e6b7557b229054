package maintenance

import (
	"context"
	"time"
)

// Task is a unit of background work run on the maintenance schedule
type Task interface {
	// Name returns the unique task name
	Name() string

	// Description returns a human-readable description of what the task does
	Description() string

	// Execute runs the task once
	Execute(ctx context.Context) TaskResult
}

// TaskResult is the outcome of one task run
type TaskResult struct {
	Success          bool          `json:"success"`
	Duration         time.Duration `json:"duration"`
	Message          string        `json:"message"`
	RecordsProcessed int           `json:"records_processed,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// TaskStatus is what the admin dashboard shows for a task
type TaskStatus struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	LastRun     time.Time  `json:"last_run"`
	NextRun     time.Time  `json:"next_run"`
	LastResult  TaskResult `json:"last_result"`
	Runs        int        `json:"runs"`
	Schedule    string     `json:"schedule"`
}
