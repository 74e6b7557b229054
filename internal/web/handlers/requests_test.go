package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/notify"
)

func seedRequests(env *testEnv) {
	base := time.Date(2024, 1, 31, 14, 0, 0, 0, time.UTC)
	for i, status := range []database.RequestStatus{database.StatusPending, database.StatusPending, database.StatusApproved, database.StatusRejected} {
		env.ledger.AddRequest(database.Request{
			ID:          database.NewRequestID(base.Add(time.Duration(i) * time.Minute)),
			Email:       "anna@example.com",
			ClusterID:   "cluster_1",
			ImagePath:   "cluster_1/selfie.jpg",
			Status:      status,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestRequestsHandler_List(t *testing.T) {
	env := newTestEnv(t)
	seedRequests(env)
	handler := NewRequestsHandler(env.workflow, env.ledger)

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantCount  int
	}{
		{"all", "/", http.StatusOK, 4},
		{"pending only", "/?status=pending", http.StatusOK, 2},
		{"limited", "/?limit=1", http.StatusOK, 1},
		{"bad status", "/?status=archived", http.StatusBadRequest, 0},
		{"bad limit", "/?limit=zero", http.StatusBadRequest, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.List(recorder, httptest.NewRequest(http.MethodGet, tc.url, nil))

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Requests []database.Request   `json:"requests"`
				Stats    database.RequestStats `json:"stats"`
			}
			parseJSONResponse(t, recorder, &resp)
			if len(resp.Requests) != tc.wantCount {
				t.Errorf("expected %d requests, got %d", tc.wantCount, len(resp.Requests))
			}
			want := database.RequestStats{Total: 4, Pending: 2, Approved: 1, Rejected: 1}
			if resp.Stats != want {
				t.Errorf("unexpected stats %+v", resp.Stats)
			}
		})
	}
}

func TestRequestsHandler_Approve(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.AddRequest(database.Request{ID: "REQ_1", Email: "anna@example.com", ClusterID: "cluster_1", Status: database.StatusPending})
	handler := NewRequestsHandler(env.workflow, env.ledger)

	recorder := httptest.NewRecorder()
	handler.Approve(recorder, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"id": "REQ_1"}))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp map[string]string
	parseJSONResponse(t, recorder, &resp)
	if resp["status"] != "approved" || resp["link"] != "https://share.example/index.html" {
		t.Errorf("unexpected response %v", resp)
	}

	// a second approval conflicts
	recorder = httptest.NewRecorder()
	handler.Approve(recorder, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"id": "REQ_1"}))
	assertStatusCode(t, recorder, http.StatusConflict)

	recorder = httptest.NewRecorder()
	handler.Approve(recorder, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"id": "REQ_missing"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestRequestsHandler_ApproveNotifyFailure(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.result = notify.Result{Reason: "no images found in cluster"}
	env.ledger.AddRequest(database.Request{ID: "REQ_1", Email: "anna@example.com", ClusterID: "cluster_1", Status: database.StatusPending})
	handler := NewRequestsHandler(env.workflow, env.ledger)

	recorder := httptest.NewRecorder()
	handler.Approve(recorder, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"id": "REQ_1"}))

	assertStatusCode(t, recorder, http.StatusBadGateway)
	var resp map[string]string
	parseJSONResponse(t, recorder, &resp)
	if resp["error"] != "no images found in cluster" || resp["status"] != "pending" {
		t.Errorf("unexpected response %v", resp)
	}

	stored, err := env.ledger.GetRequest(t.Context(), "REQ_1")
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if stored.Status != database.StatusPending {
		t.Errorf("expected request to stay pending, got %s", stored.Status)
	}
}

func TestRequestsHandler_Reject(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.AddRequest(database.Request{ID: "REQ_1", Email: "anna@example.com", ClusterID: "cluster_1", Status: database.StatusPending})
	handler := NewRequestsHandler(env.workflow, env.ledger)

	recorder := httptest.NewRecorder()
	handler.Reject(recorder, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"id": "REQ_1"}))
	assertStatusCode(t, recorder, http.StatusOK)

	recorder = httptest.NewRecorder()
	handler.Reject(recorder, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"id": "REQ_1"}))
	assertStatusCode(t, recorder, http.StatusConflict)

	if env.notifier.calls != 0 {
		t.Error("rejecting must not notify")
	}
}
