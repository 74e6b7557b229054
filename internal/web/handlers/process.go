package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
)

// finished jobs stay queryable this long before they are dropped
const finishedJobRetention = time.Hour

// BatchProcessor clusters a list of image files.
type BatchProcessor interface {
	ProcessFiles(ctx context.Context, paths []string, onProgress ingest.ProgressFunc) (ingest.Summary, error)
}

// ProcessHandler runs batch ingestion of uploaded images as async jobs
type ProcessHandler struct {
	processor  BatchProcessor
	jobManager *JobManager
	onComplete func()
}

// NewProcessHandler creates a new process handler. onComplete, if set, runs
// after every job.
func NewProcessHandler(processor BatchProcessor, jm *JobManager, onComplete func()) *ProcessHandler {
	return &ProcessHandler{
		processor:  processor,
		jobManager: jm,
		onComplete: onComplete,
	}
}

// Start saves the uploaded images and starts clustering them in the background
func (h *ProcessHandler) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxBatchUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	tempDir, err := os.MkdirTemp("", "face-clustering-batch-*")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create temp directory")
		return
	}

	paths, err := saveUploadedFiles(files, tempDir)
	if err != nil {
		os.RemoveAll(tempDir)
		log.Printf("spooling batch upload: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to save uploaded files")
		return
	}
	if len(paths) == 0 {
		os.RemoveAll(tempDir)
		respondError(w, http.StatusBadRequest, "no .jpg, .jpeg or .png files provided")
		return
	}

	job, ok := h.jobManager.CreateJob(uuid.New().String(), len(paths))
	if !ok {
		os.RemoveAll(tempDir)
		respondError(w, http.StatusConflict, "a process job is already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job.start(cancel)

	go h.runProcessJob(ctx, job, paths, tempDir)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": string(JobStatusPending),
		"files":  len(paths),
	})
}

// Status returns the current state of a job
func (h *ProcessHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams process job events via SSE
func (h *ProcessHandler) Events(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	streamJob(w, r, job)
}

// Cancel cancels a process job
func (h *ProcessHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// progressEvent is sent after every file of a job
type progressEvent struct {
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	File      string `json:"file"`
	ClusterID string `json:"cluster_id,omitempty"`
	NoFace    bool   `json:"no_face,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *ProcessHandler) runProcessJob(ctx context.Context, job *ProcessJob, paths []string, tempDir string) {
	defer os.RemoveAll(tempDir)
	defer time.AfterFunc(finishedJobRetention, func() { h.jobManager.DeleteJob(job.ID) })
	if h.onComplete != nil {
		defer h.onComplete()
	}

	if !job.begin() {
		job.finish(JobStatusCancelled, nil, "")
		job.publish(JobEvent{Type: "cancelled", Message: "Job cancelled before it started"})
		return
	}
	job.publish(JobEvent{Type: "started", Message: fmt.Sprintf("Processing %d images", len(paths))})

	summary, err := h.processor.ProcessFiles(ctx, paths, func(done, total int, out ingest.Outcome, err error) {
		ev := progressEvent{
			Done:      done,
			Total:     total,
			File:      filepath.Base(out.Path),
			ClusterID: out.ClusterID,
			NoFace:    out.NoFace,
		}
		if err != nil {
			ev.Error = err.Error()
		}
		job.progress(done)
		job.publish(JobEvent{Type: "progress", Data: ev})
	})

	// paths point into tempDir; report base names only
	for i := range summary.Errors {
		summary.Errors[i].Path = filepath.Base(summary.Errors[i].Path)
	}

	if err != nil {
		if ctx.Err() != nil {
			job.finish(JobStatusCancelled, &summary, "")
			job.publish(JobEvent{Type: "cancelled", Data: summary})
			log.Printf("process job %s cancelled after %d files", job.ID, summary.Clustered+summary.NoFace+summary.Failed)
			return
		}
		job.finish(JobStatusFailed, &summary, err.Error())
		job.publish(JobEvent{Type: "job_error", Message: err.Error()})
		return
	}

	job.finish(JobStatusCompleted, &summary, "")
	job.publish(JobEvent{Type: "completed", Data: summary})
	log.Printf("process job %s done: %d clustered, %d without face, %d failed",
		job.ID, summary.Clustered, summary.NoFace, summary.Failed)
}
