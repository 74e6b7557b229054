// Package facestore persists the {cluster id -> embeddings} mapping as a
// single JSON document, with a sidecar recording which image each embedding
// came from and the highest cluster number ever handed out.
package facestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
)

// entry pairs an embedding with the image name it was computed from.
// Ref is empty for embeddings loaded from a document without a sidecar.
type entry struct {
	Embedding cluster.Embedding
	Ref       string
}

// sidecar is the on-disk layout of <name>.images.json. Retired maps a
// generated id that no longer names a cluster to the cluster now holding its
// faces, or to "" when they were deleted.
type sidecar struct {
	LastID  int                 `json:"last_id"`
	Images  map[string][]string `json:"images"`
	Retired map[string]string   `json:"retired,omitempty"`
}

// Store is a file-backed cluster.Store.
type Store struct {
	mu          sync.RWMutex
	path        string
	sidecarPath string
	clusters    map[string][]entry
	lastID      int
	retired     map[string]string
}

var _ cluster.Store = (*Store)(nil)

// SidecarPath returns the image reference file kept next to an encodings file.
func SidecarPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".images" + ext
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:        path,
		sidecarPath: SidecarPath(path),
		clusters:    make(map[string][]entry),
		retired:     make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %w", path, cluster.ErrStoreIO, err)
	}

	var doc map[string][]cluster.Embedding
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %w", path, cluster.ErrStoreIO, err)
	}

	var side sidecar
	if sideData, err := os.ReadFile(s.sidecarPath); err == nil {
		if err := json.Unmarshal(sideData, &side); err != nil {
			return nil, fmt.Errorf("parsing %s: %w: %w", s.sidecarPath, cluster.ErrStoreIO, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w: %w", s.sidecarPath, cluster.ErrStoreIO, err)
	}

	s.lastID = side.LastID
	for id, holder := range side.Retired {
		s.retired[id] = holder
		s.observeID(id)
	}
	for id, embs := range doc {
		refs := side.Images[id]
		if len(refs) != len(embs) {
			refs = nil
		}
		entries := make([]entry, len(embs))
		for i, emb := range embs {
			entries[i].Embedding = emb
			if refs != nil {
				entries[i].Ref = refs[i]
			}
		}
		s.clusters[id] = entries
		s.observeID(id)
	}
	return s, nil
}

// Path returns the location of the encodings document.
func (s *Store) Path() string {
	return s.path
}

// observeID raises the high-water mark past generated ids.
func (s *Store) observeID(id string) {
	if n, ok := cluster.ParseID(id); ok && n > s.lastID {
		s.lastID = n
	}
}

// retireLocked records that the generated id no longer names a cluster and
// redirects ids retired onto it.
func (s *Store) retireLocked(id, holder string) {
	for old, h := range s.retired {
		if h == id {
			s.retired[old] = holder
		}
	}
	if _, ok := cluster.ParseID(id); ok {
		s.observeID(id)
		s.retired[id] = holder
	}
}

// Claimable reports whether a cluster may take id as its name. Generated ids
// up to the high-water mark are spoken for; only the cluster that carried a
// retired id may take it back.
func (s *Store) Claimable(id, holder string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := cluster.ParseID(id)
	if !ok || n > s.lastID {
		return true
	}
	h, retired := s.retired[id]
	return retired && holder != "" && h == holder
}

// Retire marks id as gone for clusters the store never held, such as a
// directory without embeddings. holder names the cluster that took it over.
func (s *Store) Retire(id, holder string) error {
	return s.mutate(func() error {
		s.retireLocked(id, holder)
		return nil
	})
}

// Get returns a copy of the embeddings stored for id.
func (s *Store) Get(id string) ([]cluster.Embedding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.clusters[id]
	if !ok {
		return nil, false
	}
	out := make([]cluster.Embedding, len(entries))
	for i, e := range entries {
		out[i] = e.Embedding.Clone()
	}
	return out, true
}

// Refs returns the image names parallel to Get(id); unknown references are empty.
func (s *Store) Refs(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.clusters[id]
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Ref
	}
	return out
}

func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clusters[id]
	return ok
}

// IDs returns all cluster ids in cluster order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.clusters))
	for id := range s.clusters {
		ids = append(ids, id)
	}
	cluster.SortIDs(ids)
	return ids
}

// Snapshot returns an independent view of the whole mapping.
func (s *Store) Snapshot() map[string][]cluster.Embedding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]cluster.Embedding, len(s.clusters))
	for id, entries := range s.clusters {
		embs := make([]cluster.Embedding, len(entries))
		for i, e := range entries {
			embs[i] = e.Embedding.Clone()
		}
		out[id] = embs
	}
	return out
}

// NextID returns the next generated id. Numbers are never reused, even
// after the cluster that carried them has been deleted or renamed.
func (s *Store) NextID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.lastID + 1
	for {
		id := cluster.FormatID(n)
		if _, taken := s.clusters[id]; !taken {
			return id
		}
		n++
	}
}

// Len returns the number of clusters and the total number of embeddings.
func (s *Store) Len() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	faces := 0
	for _, entries := range s.clusters {
		faces += len(entries)
	}
	return len(s.clusters), faces
}

// mutate applies fn to the in-memory state and persists. If persisting
// fails, the previous state is restored.
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make(map[string][]entry, len(s.clusters))
	for id, entries := range s.clusters {
		prev[id] = append([]entry(nil), entries...)
	}
	prevLast := s.lastID
	prevRetired := maps.Clone(s.retired)
	restore := func() {
		s.clusters, s.lastID, s.retired = prev, prevLast, prevRetired
	}

	if err := fn(); err != nil {
		restore()
		return err
	}
	if err := s.persistLocked(); err != nil {
		restore()
		return err
	}
	return nil
}

// Append adds an embedding to a cluster, creating the cluster if needed.
func (s *Store) Append(id string, emb cluster.Embedding, imageRef string) error {
	return s.mutate(func() error {
		s.clusters[id] = append(s.clusters[id], entry{Embedding: emb.Clone(), Ref: imageRef})
		s.observeID(id)
		return nil
	})
}

// Remove drops a cluster and all of its embeddings.
func (s *Store) Remove(id string) error {
	return s.mutate(func() error {
		if _, ok := s.clusters[id]; !ok {
			return fmt.Errorf("cluster %s: %w", id, cluster.ErrNotFound)
		}
		delete(s.clusters, id)
		s.retireLocked(id, "")
		return nil
	})
}

// Rename moves a cluster's embeddings to a new key.
func (s *Store) Rename(oldID, newID string) error {
	return s.mutate(func() error {
		entries, ok := s.clusters[oldID]
		if !ok {
			return fmt.Errorf("cluster %s: %w", oldID, cluster.ErrNotFound)
		}
		if _, taken := s.clusters[newID]; taken {
			return fmt.Errorf("cluster %s: %w", newID, cluster.ErrConflict)
		}
		delete(s.clusters, oldID)
		s.clusters[newID] = entries
		delete(s.retired, newID)
		s.retireLocked(oldID, newID)
		s.observeID(newID)
		return nil
	})
}

// MoveByRef relocates the embedding recorded for imageRef from srcID to
// dstID. It reports false when no such embedding exists; dstID still counts
// towards the high-water mark.
func (s *Store) MoveByRef(srcID, dstID, imageRef string) (bool, error) {
	moved := false
	err := s.mutate(func() error {
		s.observeID(dstID)
		entries := s.clusters[srcID]
		idx := indexOfRef(entries, imageRef)
		if idx < 0 {
			return nil
		}
		e := entries[idx]
		s.clusters[srcID] = append(entries[:idx:idx], entries[idx+1:]...)
		s.clusters[dstID] = append(s.clusters[dstID], e)
		moved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

// RemoveByRef drops the embedding recorded for imageRef in id.
func (s *Store) RemoveByRef(id, imageRef string) (bool, error) {
	removed := false
	err := s.mutate(func() error {
		entries := s.clusters[id]
		idx := indexOfRef(entries, imageRef)
		if idx < 0 {
			return nil
		}
		s.clusters[id] = append(entries[:idx:idx], entries[idx+1:]...)
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Absorb appends every embedding of srcID to dstID and drops srcID.
func (s *Store) Absorb(srcID, dstID string) error {
	return s.mutate(func() error {
		entries, ok := s.clusters[srcID]
		if !ok {
			return fmt.Errorf("cluster %s: %w", srcID, cluster.ErrNotFound)
		}
		s.clusters[dstID] = append(s.clusters[dstID], entries...)
		delete(s.clusters, srcID)
		s.retireLocked(srcID, "")
		return nil
	})
}

func indexOfRef(entries []entry, ref string) int {
	if ref == "" {
		return -1
	}
	for i, e := range entries {
		if e.Ref == ref {
			return i
		}
	}
	return -1
}

// Persist writes the current state to disk.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// persistLocked writes the sidecar first and the encodings document last,
// each replaced atomically, so a reader of encodings.json always sees a
// complete document.
func (s *Store) persistLocked() error {
	doc := make(map[string][]cluster.Embedding, len(s.clusters))
	side := sidecar{LastID: s.lastID, Images: make(map[string][]string, len(s.clusters)), Retired: s.retired}
	for id, entries := range s.clusters {
		embs := make([]cluster.Embedding, len(entries))
		refs := make([]string, len(entries))
		for i, e := range entries {
			embs[i] = e.Embedding
			refs[i] = e.Ref
		}
		doc[id] = embs
		side.Images[id] = refs
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w: %w", dir, cluster.ErrStoreIO, err)
		}
	}

	sideData, err := json.Marshal(side)
	if err != nil {
		return fmt.Errorf("encoding image references: %w: %w", cluster.ErrStoreIO, err)
	}
	if err := renameio.WriteFile(s.sidecarPath, sideData, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w: %w", s.sidecarPath, cluster.ErrStoreIO, err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding embeddings: %w: %w", cluster.ErrStoreIO, err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w: %w", s.path, cluster.ErrStoreIO, err)
	}
	return nil
}
