package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
)

// JobStatus is the lifecycle state of a batch job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusRunning    JobStatus = "running"
	JobStatusCancelling JobStatus = "cancelling"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

func isJobTerminal(status JobStatus) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobEvent is one message relayed to the job's SSE subscribers.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ProcessJob is a batch ingestion of uploaded images running in the background.
type ProcessJob struct {
	mu          sync.RWMutex
	cancel      context.CancelFunc
	subscribers []chan JobEvent

	ID             string
	Status         JobStatus
	TotalFiles     int
	ProcessedFiles int
	Error          string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Result         *ingest.Summary
}

// ProcessJobStatus is the JSON view of a ProcessJob.
type ProcessJobStatus struct {
	ID             string          `json:"id"`
	Status         JobStatus       `json:"status"`
	TotalFiles     int             `json:"total_files"`
	ProcessedFiles int             `json:"processed_files"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Result         *ingest.Summary `json:"result,omitempty"`
}

// Subscribe returns a channel receiving the job's events from now on.
func (j *ProcessJob) Subscribe() chan JobEvent {
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	j.mu.Lock()
	j.subscribers = append(j.subscribers, ch)
	j.mu.Unlock()
	return ch
}

// Unsubscribe detaches and closes a channel returned by Subscribe.
func (j *ProcessJob) Unsubscribe(ch chan JobEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, sub := range j.subscribers {
		if sub == ch {
			j.subscribers = append(j.subscribers[:i], j.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// publish delivers ev to every subscriber. A subscriber whose buffer is full
// misses the event rather than stalling the job.
func (j *ProcessJob) publish(ev JobEvent) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, sub := range j.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

// GetStatus returns the current job status.
func (j *ProcessJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy safe to encode while the job is running.
func (j *ProcessJob) Snapshot() ProcessJobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ProcessJobStatus{
		ID:             j.ID,
		Status:         j.Status,
		TotalFiles:     j.TotalFiles,
		ProcessedFiles: j.ProcessedFiles,
		Error:          j.Error,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		Result:         j.Result,
	}
}

// Cancel stops the job's context. The job stays active until the file in
// flight is done; files already clustered stay clustered.
func (j *ProcessJob) Cancel() {
	j.mu.Lock()
	if j.cancel != nil {
		j.cancel()
	}
	if isJobTerminal(j.Status) {
		j.mu.Unlock()
		return
	}
	j.Status = JobStatusCancelling
	j.mu.Unlock()
	j.publish(JobEvent{Type: "cancelling", Message: "Job cancelled by user"})
}

func (j *ProcessJob) start(cancel context.CancelFunc) {
	j.mu.Lock()
	j.cancel = cancel
	j.mu.Unlock()
}

// begin marks the job running unless it was cancelled before it started.
func (j *ProcessJob) begin() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobStatusCancelling {
		return false
	}
	j.Status = JobStatusRunning
	return true
}

func (j *ProcessJob) progress(done int) {
	j.mu.Lock()
	j.ProcessedFiles = done
	j.mu.Unlock()
}

// finish moves the job into a terminal state; a requested cancellation wins.
func (j *ProcessJob) finish(status JobStatus, summary *ingest.Summary, errMsg string) {
	now := time.Now()
	j.mu.Lock()
	if j.Status == JobStatusCancelling {
		status = JobStatusCancelled
	}
	j.Status = status
	j.CompletedAt = &now
	j.Result = summary
	j.Error = errMsg
	j.mu.Unlock()
}

// JobManager tracks process jobs. Only one runs at a time since every job
// writes to the same store.
type JobManager struct {
	mu     sync.RWMutex
	jobs   map[string]*ProcessJob
	active string
}

func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*ProcessJob)}
}

// CreateJob registers a pending job, or reports false while another job is
// still running.
func (m *JobManager) CreateJob(id string, totalFiles int) (*ProcessJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.jobs[m.active]; ok && !isJobTerminal(current.GetStatus()) {
		return nil, false
	}
	job := &ProcessJob{
		ID:         id,
		Status:     JobStatusPending,
		TotalFiles: totalFiles,
		StartedAt:  time.Now(),
	}
	m.jobs[id] = job
	m.active = id
	return job, true
}

func (m *JobManager) GetJob(id string) *ProcessJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}
