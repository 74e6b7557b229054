// Package maintenance runs periodic background jobs such as the similarity
// analysis that feeds merge suggestions.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrUnknownTask is returned by RunTask for names that were never registered.
var ErrUnknownTask = errors.New("unknown maintenance task")

// Scheduler runs registered tasks on a cron schedule with a seconds field
type Scheduler struct {
	schedule string
	cron     *cron.Cron
	tasks    map[string]Task
	entries  map[string]cron.EntryID
	status   map[string]TaskStatus
	mu       sync.RWMutex
	running  bool
	logger   *log.Logger
}

// NewScheduler creates a scheduler. An empty schedule disables periodic
// runs; RunNow and RunTask still work.
func NewScheduler(schedule string, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds()),
		tasks:    make(map[string]Task),
		entries:  make(map[string]cron.EntryID),
		status:   make(map[string]TaskStatus),
		logger:   logger,
	}
}

// Enabled reports whether periodic runs are configured
func (s *Scheduler) Enabled() bool {
	return s.schedule != ""
}

// RegisterTask adds a task. Registering twice under one name is an error.
func (s *Scheduler) RegisterTask(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := task.Name()
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}
	s.tasks[name] = task
	s.status[name] = TaskStatus{
		Name:        name,
		Description: task.Description(),
		Schedule:    s.schedule,
	}

	s.logger.Printf("[Maintenance] Registered task: %s", name)
	return nil
}

// Start schedules every registered task and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if !s.Enabled() {
		s.logger.Println("[Maintenance] Scheduler disabled, no schedule configured")
		return nil
	}

	for name, task := range s.tasks {
		id, err := s.cron.AddFunc(s.schedule, func() {
			s.executeTask(context.Background(), name, task)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", name, err)
		}
		s.entries[name] = id
		s.logger.Printf("[Maintenance] Scheduled task %s with schedule: %s", name, s.schedule)
	}

	s.cron.Start()
	s.running = true
	s.logger.Printf("[Maintenance] Scheduler started with %d tasks", len(s.tasks))
	return nil
}

// Stop halts the cron loop and waits up to 30s for running tasks
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		s.logger.Println("[Maintenance] Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		s.logger.Println("[Maintenance] Scheduler stop timed out")
	}
}

// RunNow executes every task immediately
func (s *Scheduler) RunNow(ctx context.Context) {
	s.mu.RLock()
	tasks := make(map[string]Task, len(s.tasks))
	for name, task := range s.tasks {
		tasks[name] = task
	}
	s.mu.RUnlock()

	for name, task := range tasks {
		s.executeTask(ctx, name, task)
	}
}

// RunTask executes one task by name
func (s *Scheduler) RunTask(ctx context.Context, name string) (TaskResult, error) {
	s.mu.RLock()
	task, exists := s.tasks[name]
	s.mu.RUnlock()

	if !exists {
		return TaskResult{}, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.executeTask(ctx, name, task), nil
}

// GetStatus returns a copy of every task's status
func (s *Scheduler) GetStatus() map[string]TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := make(map[string]TaskStatus, len(s.status))
	for name, st := range s.status {
		if id, ok := s.entries[name]; ok {
			st.NextRun = s.cron.Entry(id).Next
		}
		status[name] = st
	}
	return status
}

// IsRunning reports whether the cron loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) executeTask(ctx context.Context, name string, task Task) TaskResult {
	s.logger.Printf("[Maintenance] Starting task: %s", name)

	start := time.Now()
	result := task.Execute(ctx)
	result.Duration = time.Since(start)

	s.mu.Lock()
	st := s.status[name]
	st.LastRun = start
	st.LastResult = result
	st.Runs++
	s.status[name] = st
	s.mu.Unlock()

	if result.Success {
		s.logger.Printf("[Maintenance] Task %s completed in %v: %s", name, result.Duration, result.Message)
	} else {
		s.logger.Printf("[Maintenance] Task %s failed after %v: %s (%s)", name, result.Duration, result.Message, result.Error)
	}
	return result
}
