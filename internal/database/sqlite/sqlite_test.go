package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/database/ledgertest"
)

func TestLedger(t *testing.T) {
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "requests.db"))
	require.NoError(t, err)
	defer l.Close()

	ledgertest.Run(t, l)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "requests.db")

	l, err := Open(ctx, path)
	require.NoError(t, err)
	req := &database.Request{
		ID: "REQ_1", Email: "x@example.com", ClusterID: "cluster_3",
		ImagePath: "/tmp/x.jpg", Status: database.StatusPending, SubmittedAt: time.Now(),
	}
	require.NoError(t, l.CreateRequest(ctx, req))
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err, "migrations must be re-runnable")
	defer l.Close()

	got, err := l.GetRequest(ctx, "REQ_1")
	require.NoError(t, err)
	assert.Equal(t, "cluster_3", got.ClusterID)
	assert.WithinDuration(t, req.SubmittedAt, got.SubmittedAt, time.Microsecond)
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := formatTime(time.Date(2024, 1, 1, 9, 0, 0, 5, time.UTC))
	b := formatTime(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	assert.Less(t, a, b)

	parsed, err := parseTime(a)
	require.NoError(t, err)
	assert.Equal(t, 5, parsed.Nanosecond())
}
