// Package ledgertest holds behaviour checks shared by every request ledger backend.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

// Run exercises a fresh, empty ledger.
func Run(t *testing.T, ledger database.Ledger) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	reqs := []database.Request{
		{ID: "REQ_20240301_120000_aaaaaaaa", Email: "a@example.com", ClusterID: "cluster_1", ImagePath: "cluster_1/a.jpg", Status: database.StatusPending, SubmittedAt: base},
		{ID: "REQ_20240301_120100_bbbbbbbb", Email: "b@example.com", ClusterID: "cluster_2", ImagePath: "cluster_2/b.jpg", Status: database.StatusPending, SubmittedAt: base.Add(time.Minute)},
		{ID: "REQ_20240301_120200_cccccccc", Email: "c@example.com", ClusterID: "cluster_1", ImagePath: "cluster_1/c.jpg", Status: database.StatusPending, SubmittedAt: base.Add(2 * time.Minute)},
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		for i := range reqs {
			require.NoError(t, ledger.CreateRequest(ctx, &reqs[i]))
		}

		got, err := ledger.GetRequest(ctx, reqs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, reqs[0].Email, got.Email)
		assert.Equal(t, reqs[0].ClusterID, got.ClusterID)
		assert.Equal(t, reqs[0].ImagePath, got.ImagePath)
		assert.Equal(t, database.StatusPending, got.Status)
		assert.True(t, reqs[0].SubmittedAt.Equal(got.SubmittedAt), "submitted_at round trip: %v", got.SubmittedAt)

		_, err = ledger.GetRequest(ctx, "REQ_missing")
		assert.ErrorIs(t, err, database.ErrRequestNotFound)
	})

	t.Run("DuplicateIDRejected", func(t *testing.T) {
		dup := reqs[0]
		assert.Error(t, ledger.CreateRequest(ctx, &dup))
	})

	t.Run("Transition", func(t *testing.T) {
		require.NoError(t, ledger.TransitionRequest(ctx, reqs[0].ID, database.StatusPending, database.StatusApproved))
		require.NoError(t, ledger.TransitionRequest(ctx, reqs[1].ID, database.StatusPending, database.StatusRejected))

		err := ledger.TransitionRequest(ctx, reqs[0].ID, database.StatusPending, database.StatusRejected)
		assert.ErrorIs(t, err, database.ErrStatusConflict)

		err = ledger.TransitionRequest(ctx, "REQ_missing", database.StatusPending, database.StatusApproved)
		assert.ErrorIs(t, err, database.ErrRequestNotFound)

		got, err := ledger.GetRequest(ctx, reqs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, database.StatusApproved, got.Status)
	})

	t.Run("List", func(t *testing.T) {
		all, err := ledger.ListRequests(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, reqs[2].ID, all[0].ID, "newest first")
		assert.Equal(t, reqs[0].ID, all[2].ID)

		pending, err := ledger.ListRequests(ctx, database.StatusPending, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, reqs[2].ID, pending[0].ID)

		limited, err := ledger.ListRequests(ctx, "", 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		rejected, err := ledger.ListRequests(ctx, database.StatusRejected, 10)
		require.NoError(t, err)
		require.Len(t, rejected, 1)
		assert.Equal(t, reqs[1].ID, rejected[0].ID)
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := ledger.RequestStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, database.RequestStats{Total: 3, Pending: 1, Approved: 1, Rejected: 1}, stats)
	})

	t.Run("Sessions", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		live := database.StoredSession{ID: "live", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		dead := database.StoredSession{ID: "dead", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
		require.NoError(t, ledger.SaveSession(ctx, live))
		require.NoError(t, ledger.SaveSession(ctx, dead))

		got, err := ledger.GetSession(ctx, "live")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, live.ExpiresAt.Equal(got.ExpiresAt))

		got, err = ledger.GetSession(ctx, "dead")
		require.NoError(t, err)
		assert.Nil(t, got, "expired session must not be returned")

		n, err := ledger.DeleteExpiredSessions(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		require.NoError(t, ledger.DeleteSession(ctx, "live"))
		got, err = ledger.GetSession(ctx, "live")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
