package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/database/mock"
	"github.com/v1gneshkum4r21/face-clustering/internal/facestore"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
	"github.com/v1gneshkum4r21/face-clustering/internal/layout"
	"github.com/v1gneshkum4r21/face-clustering/internal/notify"
	"github.com/v1gneshkum4r21/face-clustering/internal/workflow"
)

// fakeProvider maps image contents to embeddings; anything else has no face
type fakeProvider struct {
	faces map[string]cluster.Embedding
}

func (f *fakeProvider) Embed(_ context.Context, data []byte) (cluster.Embedding, error) {
	if emb, ok := f.faces[string(data)]; ok {
		return emb, nil
	}
	return nil, cluster.ErrNoFaceDetected
}

type fakeNotifier struct {
	result notify.Result
	calls  int
}

func (f *fakeNotifier) Notify(_ context.Context, email, clusterID string) notify.Result {
	f.calls++
	return f.result
}

// testEnv wires the real cluster engine over a temp directory
type testEnv struct {
	dir      string
	store    *facestore.Store
	layout   *layout.Layout
	manager  *cluster.Manager
	provider *fakeProvider
	pipeline *ingest.Pipeline
	ledger   *mock.MockLedger
	notifier *fakeNotifier
	workflow *workflow.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	results := filepath.Join(dir, "results")

	lay, err := layout.New(results)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	store, err := facestore.Open(filepath.Join(results, "encodings.json"))
	if err != nil {
		t.Fatalf("facestore.Open: %v", err)
	}
	manager := cluster.NewManager(store, lay)
	provider := &fakeProvider{faces: map[string]cluster.Embedding{}}
	pipeline := ingest.NewPipeline(provider, manager)
	ledger := mock.NewMockLedger()
	notifier := &fakeNotifier{result: notify.Result{OK: true, Link: "https://share.example/index.html"}}

	return &testEnv{
		dir:      dir,
		store:    store,
		layout:   lay,
		manager:  manager,
		provider: provider,
		pipeline: pipeline,
		ledger:   ledger,
		notifier: notifier,
		workflow: workflow.NewService(pipeline, ledger, notifier, dir),
	}
}

// addImage registers content as a face and files it through the engine
func (e *testEnv) addImage(t *testing.T, name, content string, emb cluster.Embedding) string {
	t.Helper()
	e.provider.faces[content] = emb

	src := filepath.Join(e.dir, "src", name)
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	id, _, err := e.manager.AddImage(context.Background(), emb, src)
	if err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	return id
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type uploadFile struct {
	field, name, content string
}

// multipartRequest builds a multipart/form-data request
func multipartRequest(t *testing.T, path string, fields map[string]string, files ...uploadFile) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(f.content))
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
