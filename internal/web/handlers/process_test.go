package handlers

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
)

func waitForJob(t *testing.T, jm *JobManager, id string) *ProcessJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := jm.GetJob(id); job != nil && isJobTerminal(job.GetStatus()) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return nil
}

func TestProcessHandler_Start(t *testing.T) {
	env := newTestEnv(t)
	env.provider.faces["face-a"] = cluster.Embedding{0, 0}
	env.provider.faces["face-b"] = cluster.Embedding{5, 5}
	jm := NewJobManager()
	completed := make(chan struct{}, 1)
	handler := NewProcessHandler(env.pipeline, jm, func() { completed <- struct{}{} })

	recorder := httptest.NewRecorder()
	handler.Start(recorder, multipartRequest(t, "/api/v1/process", nil,
		uploadFile{field: "files", name: "a.jpg", content: "face-a"},
		uploadFile{field: "files", name: "b.png", content: "face-b"},
		uploadFile{field: "files", name: "wall.jpg", content: "nothing"},
		uploadFile{field: "files", name: "notes.txt", content: "skip me"},
	))

	assertStatusCode(t, recorder, http.StatusAccepted)
	var resp struct {
		JobID string `json:"job_id"`
		Files int    `json:"files"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Files != 3 {
		t.Errorf("expected 3 accepted images, got %d", resp.Files)
	}

	job := waitForJob(t, jm, resp.JobID)
	select {
	case <-completed:
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback not called")
	}

	status := job.Snapshot()
	if status.Status != JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", status.Status, status.Error)
	}
	if status.Result == nil || status.Result.Clustered != 2 || status.Result.NoFace != 1 {
		t.Errorf("unexpected result %+v", status.Result)
	}
	if status.ProcessedFiles != 3 {
		t.Errorf("expected 3 processed files, got %d", status.ProcessedFiles)
	}

	clusters, err := env.manager.Clusters()
	if err != nil {
		t.Fatalf("Clusters: %v", err)
	}
	if len(clusters) != 2 {
		t.Errorf("expected 2 clusters, got %d", len(clusters))
	}
}

func TestProcessHandler_StartRejectsEmptyUploads(t *testing.T) {
	env := newTestEnv(t)
	handler := NewProcessHandler(env.pipeline, NewJobManager(), nil)

	recorder := httptest.NewRecorder()
	handler.Start(recorder, multipartRequest(t, "/api/v1/process", map[string]string{"x": "y"}))
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "no files provided")

	recorder = httptest.NewRecorder()
	handler.Start(recorder, multipartRequest(t, "/api/v1/process", nil,
		uploadFile{field: "files", name: "notes.txt", content: "skip me"}))
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "no .jpg, .jpeg or .png files provided")
}

func TestProcessHandler_StatusAndCancelUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	handler := NewProcessHandler(env.pipeline, NewJobManager(), nil)

	recorder := httptest.NewRecorder()
	handler.Status(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"jobId": "nope"}))
	assertStatusCode(t, recorder, http.StatusNotFound)

	recorder = httptest.NewRecorder()
	handler.Cancel(recorder, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"jobId": "nope"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestJobManager_OneActiveJob(t *testing.T) {
	jm := NewJobManager()

	first, ok := jm.CreateJob("job-1", 2)
	if !ok {
		t.Fatal("expected first job to be created")
	}
	if _, ok := jm.CreateJob("job-2", 1); ok {
		t.Fatal("expected second job to be refused while the first is active")
	}

	first.finish(JobStatusCompleted, &ingest.Summary{Total: 2, Clustered: 2}, "")
	if _, ok := jm.CreateJob("job-2", 1); !ok {
		t.Fatal("expected a new job once the first finished")
	}

	jm.DeleteJob("job-1")
	if jm.GetJob("job-1") != nil {
		t.Error("expected job-1 to be deleted")
	}
}

func TestJobManager_CancelledJobStaysActiveUntilFinished(t *testing.T) {
	jm := NewJobManager()
	job, _ := jm.CreateJob("job-1", 3)
	if !job.begin() {
		t.Fatal("expected job to start")
	}

	job.Cancel()
	if _, ok := jm.CreateJob("job-2", 1); ok {
		t.Fatal("expected a new job to be refused while the cancelled one is still stopping")
	}

	job.finish(JobStatusCancelled, &ingest.Summary{Total: 3, Clustered: 1}, "")
	if _, ok := jm.CreateJob("job-2", 1); !ok {
		t.Fatal("expected a new job once the cancelled one stopped")
	}

	job.Cancel()
	if got := job.GetStatus(); got != JobStatusCancelled {
		t.Errorf("expected cancelling a finished job to change nothing, got %s", got)
	}
}

func TestProcessJob_CancelIsSticky(t *testing.T) {
	jm := NewJobManager()
	job, _ := jm.CreateJob("job-1", 1)

	job.Cancel()
	if got := job.GetStatus(); got != JobStatusCancelling {
		t.Errorf("expected cancelling until the job stops, got %s", got)
	}
	job.finish(JobStatusCompleted, &ingest.Summary{}, "")

	if got := job.GetStatus(); got != JobStatusCancelled {
		t.Errorf("expected cancelled to survive finish, got %s", got)
	}
	if job.Snapshot().CompletedAt == nil {
		t.Error("expected completion time to be set")
	}
}

func TestProcessHandler_EventsForFinishedJob(t *testing.T) {
	env := newTestEnv(t)
	jm := NewJobManager()
	job, _ := jm.CreateJob("job-1", 1)
	job.finish(JobStatusCompleted, &ingest.Summary{Total: 1, Clustered: 1}, "")
	handler := NewProcessHandler(env.pipeline, jm, nil)

	recorder := httptest.NewRecorder()
	handler.Events(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"jobId": "job-1"}))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "text/event-stream")

	scanner := bufio.NewScanner(strings.NewReader(recorder.Body.String()))
	var lines []string
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 2 || lines[0] != "event: status" {
		t.Fatalf("unexpected stream %q", lines)
	}
	if !strings.Contains(lines[1], `"status":"completed"`) {
		t.Errorf("expected completed status in %q", lines[1])
	}

	recorder = httptest.NewRecorder()
	handler.Events(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"jobId": "missing"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestProcessJob_Subscribe(t *testing.T) {
	jm := NewJobManager()
	job, _ := jm.CreateJob("job-1", 2)
	ch := job.Subscribe()

	job.publish(JobEvent{Type: "progress", Message: "1/2"})
	ev := <-ch
	if ev.Type != "progress" || ev.Message != "1/2" {
		t.Errorf("unexpected event %+v", ev)
	}

	job.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	// no subscribers left, must not block
	job.publish(JobEvent{Type: "completed"})
}
