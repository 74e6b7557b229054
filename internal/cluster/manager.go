package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
)

// Store is the durable {cluster id -> embeddings} mapping. Every mutating
// call persists before returning and leaves the in-memory state untouched
// when persisting fails. Stored embeddings are never modified in place.
type Store interface {
	Get(id string) ([]Embedding, bool)
	Refs(id string) []string
	Has(id string) bool
	IDs() []string
	Snapshot() map[string][]Embedding
	NextID() string
	Claimable(id, holder string) bool
	Retire(id, holder string) error
	Append(id string, emb Embedding, imageRef string) error
	Remove(id string) error
	Rename(oldID, newID string) error
	MoveByRef(srcID, dstID, imageRef string) (bool, error)
	RemoveByRef(id, imageRef string) (bool, error)
	Absorb(srcID, dstID string) error
}

// Layout is the on-disk directory tree holding one folder of images per cluster.
type Layout interface {
	Clusters() ([]string, error)
	Exists(id string) bool
	Images(id string) ([]string, error)
	HasImage(id, name string) bool
	ImagePath(id, name string) (string, error)
	Add(id, srcPath string) (string, error)
	Move(srcID, dstID, name string) error
	DeleteImage(id, name string) error
	RemoveCluster(id string) error
	RenameCluster(oldID, newID string) error
}

// Manager owns a store and a layout and keeps them in step. A single
// RWMutex serialises mutations; readers share the lock.
type Manager struct {
	mu        sync.RWMutex
	store     Store
	layout    Layout
	tolerance float64
	workers   int
}

// Option configures a Manager.
type Option func(*Manager)

// WithTolerance sets the maximum distance for two faces to match.
func WithTolerance(t float64) Option {
	return func(m *Manager) {
		if t > 0 {
			m.tolerance = t
		}
	}
}

// WithWorkers sets the number of goroutines used by FindSimilarPairs.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

func NewManager(store Store, layout Layout, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		layout:    layout,
		tolerance: constants.DefaultTolerance,
		workers:   constants.AnalyzerWorkers,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tolerance returns the match distance in use.
func (m *Manager) Tolerance() float64 {
	return m.tolerance
}

// Summary describes one cluster for listings.
type Summary struct {
	ID         string `json:"id"`
	ImageCount int    `json:"image_count"`
	FaceCount  int    `json:"face_count"`
}

// Detail is a cluster with its image names.
type Detail struct {
	ID        string   `json:"id"`
	Images    []string `json:"images"`
	FaceCount int      `json:"face_count"`
}

// nearestLocked finds the cluster owning the closest stored embedding.
// Clusters are visited in id order and only a strictly smaller distance
// replaces the current best, so exact ties go to the lower id.
func (m *Manager) nearestLocked(emb Embedding) (string, float64, bool) {
	ids := m.store.IDs()
	SortIDs(ids)

	bestID := ""
	best := 0.0
	found := false
	for _, id := range ids {
		embs, _ := m.store.Get(id)
		for _, stored := range embs {
			d := Distance(emb, stored)
			if !found || d < best {
				bestID, best, found = id, d, true
			}
		}
	}
	if !found || best >= m.tolerance {
		return "", best, false
	}
	return bestID, best, true
}

// Match returns the cluster an embedding would join without changing anything.
func (m *Manager) Match(emb Embedding) (string, float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nearestLocked(emb)
}

// Assign places an embedding into the cluster of its nearest stored neighbour,
// or a freshly allocated cluster when nothing is within tolerance. The store
// is persisted before Assign returns.
func (m *Manager) Assign(ctx context.Context, emb Embedding, imageRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _, ok := m.nearestLocked(emb)
	if !ok {
		id = m.nextIDLocked()
	}
	if err := m.store.Append(id, emb, imageRef); err != nil {
		return "", fmt.Errorf("assigning embedding to %s: %w", id, err)
	}
	return id, nil
}

// AddImage assigns the embedding and copies the image file into the chosen
// cluster directory. Either both happen or neither does.
func (m *Manager) AddImage(ctx context.Context, emb Embedding, srcPath string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _, ok := m.nearestLocked(emb)
	if !ok {
		id = m.nextIDLocked()
	}
	newDir := !m.layout.Exists(id)

	name, err := m.layout.Add(id, srcPath)
	if err != nil {
		return "", "", fmt.Errorf("copying image into %s: %w", id, err)
	}
	if err := m.store.Append(id, emb, name); err != nil {
		_ = m.layout.DeleteImage(id, name)
		if newDir {
			_ = m.layout.RemoveCluster(id)
		}
		return "", "", fmt.Errorf("assigning embedding to %s: %w", id, err)
	}
	return id, name, nil
}

// nextIDLocked allocates a generated id that names neither a stored cluster
// nor a directory on disk.
func (m *Manager) nextIDLocked() string {
	id := m.store.NextID()
	n, _ := ParseID(id)
	for m.existsLocked(id) {
		n++
		id = FormatID(n)
	}
	return id
}

// existsLocked reports whether either the store or the layout knows the id.
func (m *Manager) existsLocked(id string) bool {
	return m.store.Has(id) || m.layout.Exists(id)
}

// Clusters lists every cluster known to the store or present on disk.
func (m *Manager) Clusters() ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dirs, err := m.layout.Clusters()
	if err != nil {
		return nil, fmt.Errorf("listing cluster directories: %w", err)
	}
	seen := make(map[string]bool, len(dirs))
	ids := make([]string, 0, len(dirs))
	for _, id := range append(dirs, m.store.IDs()...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	SortIDs(ids)

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		s := Summary{ID: id}
		if images, err := m.layout.Images(id); err == nil {
			s.ImageCount = len(images)
		}
		if embs, ok := m.store.Get(id); ok {
			s.FaceCount = len(embs)
		}
		out = append(out, s)
	}
	return out, nil
}

// Cluster returns one cluster with its image names.
func (m *Manager) Cluster(id string) (Detail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.existsLocked(id) {
		return Detail{}, fmt.Errorf("cluster %s: %w", id, ErrNotFound)
	}
	d := Detail{ID: id, Images: []string{}}
	if m.layout.Exists(id) {
		images, err := m.layout.Images(id)
		if err != nil {
			return Detail{}, fmt.Errorf("listing images of %s: %w", id, err)
		}
		d.Images = images
	}
	if embs, ok := m.store.Get(id); ok {
		d.FaceCount = len(embs)
	}
	return d, nil
}

// ImagePath resolves the file backing an image of a cluster.
func (m *Manager) ImagePath(id, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.layout.HasImage(id, name) {
		return "", fmt.Errorf("image %s in %s: %w", name, id, ErrNotFound)
	}
	return m.layout.ImagePath(id, name)
}
