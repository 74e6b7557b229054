package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/layout"
)

// walking the cluster tree is the expensive part; a minute of staleness is fine
const statsCacheTTL = time.Minute

// DiskStats reports the size of the cluster directory tree.
type DiskStats interface {
	Stats() (layout.Stats, error)
}

// FaceCounter reports how many clusters and embeddings the store holds.
type FaceCounter interface {
	Len() (clusters int, faces int)
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Disk             layout.Stats          `json:"disk"`
	StoredClusters   int                   `json:"stored_clusters"`
	StoredEmbeddings int                   `json:"stored_embeddings"`
	Requests         database.RequestStats `json:"requests"`
}

type cachedStats struct {
	stats   *StatsResponse
	expires time.Time
}

// StatsHandler serves aggregate counts. Concurrent misses share one
// computation.
type StatsHandler struct {
	disk   DiskStats
	faces  FaceCounter
	ledger database.RequestReader

	cached atomic.Pointer[cachedStats]
	group  singleflight.Group
}

func NewStatsHandler(disk DiskStats, faces FaceCounter, ledger database.RequestReader) *StatsHandler {
	return &StatsHandler{disk: disk, faces: faces, ledger: ledger}
}

// InvalidateCache forces the next request to recompute.
func (h *StatsHandler) InvalidateCache() {
	h.cached.Store(nil)
}

func (h *StatsHandler) collect(ctx context.Context) (*StatsResponse, error) {
	disk, err := h.disk.Stats()
	if err != nil {
		return nil, err
	}
	requests, err := h.ledger.RequestStats(ctx)
	if err != nil {
		return nil, err
	}
	out := &StatsResponse{Disk: disk, Requests: requests}
	out.StoredClusters, out.StoredEmbeddings = h.faces.Len()
	return out, nil
}

func (h *StatsHandler) current(ctx context.Context) (*StatsResponse, error) {
	if c := h.cached.Load(); c != nil && time.Now().Before(c.expires) {
		return c.stats, nil
	}
	v, err, _ := h.group.Do("stats", func() (any, error) {
		stats, err := h.collect(ctx)
		if err != nil {
			return nil, err
		}
		h.cached.Store(&cachedStats{stats: stats, expires: time.Now().Add(statsCacheTTL)})
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*StatsResponse), nil
}

// Get returns cluster, image and request counts.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.current(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
