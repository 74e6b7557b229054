package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/database/mock"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
	"github.com/v1gneshkum4r21/face-clustering/internal/notify"
)

type fakeProcessor struct {
	outcome ingest.Outcome
	err     error
	seen    []string
	content []string
}

func (f *fakeProcessor) ProcessFile(_ context.Context, path string) (ingest.Outcome, error) {
	f.seen = append(f.seen, path)
	data, _ := os.ReadFile(path)
	f.content = append(f.content, string(data))
	out := f.outcome
	out.Path = path
	return out, f.err
}

type fakeNotifier struct {
	result notify.Result
	calls  []string
}

func (f *fakeNotifier) Notify(_ context.Context, email, clusterID string) notify.Result {
	f.calls = append(f.calls, email+" "+clusterID)
	return f.result
}

func newService(t *testing.T, proc *fakeProcessor, n *fakeNotifier) (*Service, *mock.MockLedger) {
	t.Helper()
	ledger := mock.NewMockLedger()
	svc := NewService(proc, ledger, n, t.TempDir())
	svc.now = func() time.Time { return time.Date(2024, 1, 31, 14, 25, 1, 0, time.UTC) }
	return svc, ledger
}

func seedRequest(ledger *mock.MockLedger, id string, status database.RequestStatus) {
	ledger.AddRequest(database.Request{
		ID:          id,
		Email:       "User@Example.com",
		ClusterID:   "cluster_1",
		ImagePath:   "cluster_1/me.jpg",
		Status:      status,
		SubmittedAt: time.Now().UTC(),
	})
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"first.last+tag@sub.example.org", true},
		{"user@example", false},
		{"user@@example.com", false},
		{"user example@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidEmail(tt.email), tt.email)
	}
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	proc := &fakeProcessor{outcome: ingest.Outcome{ClusterID: "cluster_4", ImageName: "me.jpg"}}
	svc, ledger := newService(t, proc, &fakeNotifier{})

	sub, err := svc.Submit(context.Background(), " user@example.com ", "../../me.jpg", []byte("photo"))
	require.NoError(t, err)

	assert.Regexp(t, `^REQ_20240131_142501_[0-9a-f]{8}$`, sub.RequestID)
	assert.Equal(t, "cluster_4", sub.ClusterID)
	assert.Equal(t, database.StatusPending, sub.Status)

	req, err := ledger.GetRequest(context.Background(), sub.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", req.Email)
	assert.Equal(t, "cluster_4/me.jpg", req.ImagePath)

	require.Len(t, proc.seen, 1)
	assert.Equal(t, "me.jpg", filepath.Base(proc.seen[0]))
	assert.Equal(t, []string{"photo"}, proc.content)
	_, statErr := os.Stat(proc.seen[0])
	assert.True(t, os.IsNotExist(statErr), "staged upload should be removed")
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		filename string
		want     error
	}{
		{"bad email", "nope", "me.jpg", ErrInvalidEmail},
		{"bad extension", "user@example.com", "me.gif", ErrUnsupportedFile},
		{"no name", "user@example.com", "", ErrUnsupportedFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			svc, _ := newService(t, proc, &fakeNotifier{})
			_, err := svc.Submit(context.Background(), tt.email, tt.filename, []byte("x"))
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, proc.seen)
		})
	}
}

func TestSubmitNoFace(t *testing.T) {
	proc := &fakeProcessor{outcome: ingest.Outcome{NoFace: true}}
	svc, ledger := newService(t, proc, &fakeNotifier{})

	_, err := svc.Submit(context.Background(), "user@example.com", "me.png", []byte("x"))
	assert.ErrorIs(t, err, cluster.ErrNoFaceDetected)

	stats, err := ledger.RequestStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestSubmitProcessingError(t *testing.T) {
	proc := &fakeProcessor{err: cluster.ErrStoreIO}
	svc, _ := newService(t, proc, &fakeNotifier{})

	_, err := svc.Submit(context.Background(), "user@example.com", "me.png", []byte("x"))
	assert.ErrorIs(t, err, cluster.ErrStoreIO)
	_, statErr := os.Stat(proc.seen[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestStatus(t *testing.T) {
	svc, ledger := newService(t, &fakeProcessor{}, &fakeNotifier{})
	seedRequest(ledger, "REQ_1", database.StatusPending)

	req, err := svc.Status(context.Background(), "REQ_1", "user@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, req.Status)

	_, err = svc.Status(context.Background(), "REQ_1", "other@example.com")
	assert.ErrorIs(t, err, database.ErrRequestNotFound)

	_, err = svc.Status(context.Background(), "REQ_404", "user@example.com")
	assert.ErrorIs(t, err, database.ErrRequestNotFound)
}

func TestStatusMessage(t *testing.T) {
	assert.Contains(t, StatusMessage(database.StatusPending), "still being processed")
	assert.Contains(t, StatusMessage(database.StatusApproved), "approved")
	assert.Contains(t, StatusMessage(database.StatusRejected), "rejected")
	assert.Empty(t, StatusMessage("unknown"))
}

func TestApprove(t *testing.T) {
	n := &fakeNotifier{result: notify.Result{OK: true, Link: "https://share/x"}}
	svc, ledger := newService(t, &fakeProcessor{}, n)
	seedRequest(ledger, "REQ_1", database.StatusPending)

	res, err := svc.Approve(context.Background(), "REQ_1")
	require.NoError(t, err)
	assert.Equal(t, "https://share/x", res.Link)
	assert.Equal(t, []string{"User@Example.com cluster_1"}, n.calls)

	req, _ := ledger.GetRequest(context.Background(), "REQ_1")
	assert.Equal(t, database.StatusApproved, req.Status)

	_, err = svc.Approve(context.Background(), "REQ_1")
	assert.ErrorIs(t, err, database.ErrStatusConflict)
	assert.Len(t, n.calls, 1)
}

func TestApproveNotifyFailureKeepsPending(t *testing.T) {
	n := &fakeNotifier{result: notify.Result{Reason: "no images found in cluster"}}
	svc, ledger := newService(t, &fakeProcessor{}, n)
	seedRequest(ledger, "REQ_1", database.StatusPending)

	res, err := svc.Approve(context.Background(), "REQ_1")
	assert.ErrorIs(t, err, ErrNotifyFailed)
	assert.Contains(t, err.Error(), "no images found in cluster")
	assert.False(t, res.OK)

	req, _ := ledger.GetRequest(context.Background(), "REQ_1")
	assert.Equal(t, database.StatusPending, req.Status)
}

func TestApproveUnknown(t *testing.T) {
	svc, _ := newService(t, &fakeProcessor{}, &fakeNotifier{})
	_, err := svc.Approve(context.Background(), "REQ_404")
	assert.ErrorIs(t, err, database.ErrRequestNotFound)
}

func TestReject(t *testing.T) {
	n := &fakeNotifier{}
	svc, ledger := newService(t, &fakeProcessor{}, n)
	seedRequest(ledger, "REQ_1", database.StatusPending)
	seedRequest(ledger, "REQ_2", database.StatusApproved)

	require.NoError(t, svc.Reject(context.Background(), "REQ_1"))
	req, _ := ledger.GetRequest(context.Background(), "REQ_1")
	assert.Equal(t, database.StatusRejected, req.Status)

	assert.ErrorIs(t, svc.Reject(context.Background(), "REQ_2"), database.ErrStatusConflict)
	assert.Empty(t, n.calls)
}

func TestRejectLedgerFailure(t *testing.T) {
	svc, ledger := newService(t, &fakeProcessor{}, &fakeNotifier{})
	seedRequest(ledger, "REQ_1", database.StatusPending)
	ledger.TransitionError = errors.New("disk full")

	err := svc.Reject(context.Background(), "REQ_1")
	assert.ErrorContains(t, err, "disk full")
}
