package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"time"
)

// MoveResult reports what a move relocated.
type MoveResult struct {
	Image string `json:"image"`
	From  string `json:"from"`
	To    string `json:"to"`
	// EmbeddingMoved is false when the store had no embedding recorded for
	// the image (stores written before image references were tracked).
	EmbeddingMoved bool `json:"embedding_moved"`
}

// MergeFailure explains why a single image was left behind by Merge.
type MergeFailure struct {
	Image  string `json:"image"`
	Reason string `json:"reason"`
}

// MergeResult is the per-image outcome of Merge.
type MergeResult struct {
	Source        string         `json:"source"`
	Target        string         `json:"target"`
	Succeeded     []string       `json:"succeeded"`
	Failed        []MergeFailure `json:"failed"`
	SourceDeleted bool           `json:"source_deleted"`
}

func validImageName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

// MoveImage relocates one image and its embedding from src to dst.
func (m *Manager) MoveImage(ctx context.Context, src, dst, name string) (MoveResult, error) {
	if err := ctx.Err(); err != nil {
		return MoveResult{}, err
	}
	if !validImageName(name) {
		return MoveResult{}, fmt.Errorf("image %q: %w", name, ErrNotFound)
	}
	if src == dst {
		return MoveResult{}, fmt.Errorf("image %s is already in %s: %w", name, dst, ErrConflict)
	}
	if !validName.MatchString(dst) {
		return MoveResult{}, fmt.Errorf("target %q: %w", dst, ErrInvalidName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.existsLocked(dst) && !m.store.Claimable(dst, "") {
		return MoveResult{}, fmt.Errorf("target %s was used by another cluster: %w", dst, ErrConflict)
	}
	return m.moveLocked(src, dst, name)
}

func (m *Manager) moveLocked(src, dst, name string) (MoveResult, error) {
	if !m.layout.HasImage(src, name) {
		return MoveResult{}, fmt.Errorf("image %s in %s: %w", name, src, ErrNotFound)
	}
	if m.layout.HasImage(dst, name) {
		return MoveResult{}, fmt.Errorf("image %s in %s: %w", name, dst, ErrConflict)
	}

	if err := m.layout.Move(src, dst, name); err != nil {
		return MoveResult{}, fmt.Errorf("moving image %s: %w", name, err)
	}
	moved, err := m.store.MoveByRef(src, dst, name)
	if err != nil {
		if undoErr := m.layout.Move(dst, src, name); undoErr != nil {
			log.Printf("cluster: failed to restore %s to %s: %v", name, src, undoErr)
		}
		return MoveResult{}, fmt.Errorf("moving embedding of %s: %w", name, err)
	}
	return MoveResult{Image: name, From: src, To: dst, EmbeddingMoved: moved}, nil
}

// DeleteImage removes one image and its embedding. The cluster directory
// stays even when it becomes empty. The returned flag tells whether an
// embedding was recorded for the image.
func (m *Manager) DeleteImage(ctx context.Context, id, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !validImageName(name) {
		return false, fmt.Errorf("image %q: %w", name, ErrNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.layout.HasImage(id, name) {
		return false, fmt.Errorf("image %s in %s: %w", name, id, ErrNotFound)
	}
	removed := m.embeddingForLocked(id, name)
	hadEmbedding, err := m.store.RemoveByRef(id, name)
	if err != nil {
		return false, fmt.Errorf("removing embedding of %s: %w", name, err)
	}
	if err := m.layout.DeleteImage(id, name); err != nil {
		if hadEmbedding && removed != nil {
			if restoreErr := m.store.Append(id, removed, name); restoreErr != nil {
				log.Printf("cluster: failed to restore embedding of %s in %s: %v", name, id, restoreErr)
			}
		}
		return false, fmt.Errorf("deleting image %s: %w", name, err)
	}
	return hadEmbedding, nil
}

// embeddingForLocked returns the embedding stored for an image, or nil when
// the store has no reference recorded for it.
func (m *Manager) embeddingForLocked(id, name string) Embedding {
	embs, ok := m.store.Get(id)
	if !ok {
		return nil
	}
	for i, ref := range m.store.Refs(id) {
		if ref == name && i < len(embs) {
			return embs[i]
		}
	}
	return nil
}

// DeleteCluster removes a cluster directory and its store entry. Remaining
// cluster ids are not renumbered and the id is never handed out again.
func (m *Manager) DeleteCluster(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Manager) deleteLocked(id string) error {
	inStore := m.store.Has(id)
	onDisk := m.layout.Exists(id)
	if !inStore && !onDisk {
		return fmt.Errorf("cluster %s: %w", id, ErrNotFound)
	}

	// Park the directory under a hidden name first so a store failure can be undone.
	trash := ".deleted_" + id + "_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	if onDisk {
		if err := m.layout.RenameCluster(id, trash); err != nil {
			return fmt.Errorf("removing directory of %s: %w", id, err)
		}
	}
	var err error
	if inStore {
		err = m.store.Remove(id)
	} else {
		err = m.store.Retire(id, "")
	}
	if err != nil {
		if onDisk {
			if undoErr := m.layout.RenameCluster(trash, id); undoErr != nil {
				log.Printf("cluster: failed to restore directory of %s: %v", id, undoErr)
			}
		}
		return fmt.Errorf("removing %s from store: %w", id, err)
	}
	if onDisk {
		if err := m.layout.RemoveCluster(trash); err != nil {
			log.Printf("cluster: leftover directory %s: %v", trash, err)
		}
	}
	return nil
}

// RenameCluster gives a cluster a new name. The name is normalised and the
// normalised identifier is returned.
func (m *Manager) RenameCluster(ctx context.Context, oldID, newName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	newID, err := NormalizeName(newName)
	if err != nil {
		return "", fmt.Errorf("renaming %s to %q: %w", oldID, newName, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.existsLocked(oldID) {
		return "", fmt.Errorf("cluster %s: %w", oldID, ErrNotFound)
	}
	if newID == oldID {
		return newID, nil
	}
	if m.existsLocked(newID) {
		return "", fmt.Errorf("cluster %s: %w", newID, ErrConflict)
	}
	if !m.store.Claimable(newID, oldID) {
		return "", fmt.Errorf("cluster %s was used by another cluster: %w", newID, ErrConflict)
	}

	onDisk := m.layout.Exists(oldID)
	if onDisk {
		if err := m.layout.RenameCluster(oldID, newID); err != nil {
			return "", fmt.Errorf("renaming directory %s: %w", oldID, err)
		}
	}
	if m.store.Has(oldID) {
		err = m.store.Rename(oldID, newID)
	} else {
		err = m.store.Retire(oldID, newID)
	}
	if err != nil {
		if onDisk {
			if undoErr := m.layout.RenameCluster(newID, oldID); undoErr != nil {
				log.Printf("cluster: failed to restore directory name %s: %v", oldID, undoErr)
			}
		}
		return "", fmt.Errorf("renaming %s in store: %w", oldID, err)
	}
	return newID, nil
}

// Merge moves every image of src into dst, one at a time. Images that cannot
// be moved are reported in the result; src is deleted only when nothing was
// left behind.
func (m *Manager) Merge(ctx context.Context, src, dst string) (MergeResult, error) {
	if err := ctx.Err(); err != nil {
		return MergeResult{}, err
	}
	if src == dst {
		return MergeResult{}, fmt.Errorf("cannot merge %s into itself: %w", src, ErrConflict)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.existsLocked(src) {
		return MergeResult{}, fmt.Errorf("cluster %s: %w", src, ErrNotFound)
	}
	if !m.existsLocked(dst) {
		return MergeResult{}, fmt.Errorf("cluster %s: %w", dst, ErrNotFound)
	}

	result := MergeResult{Source: src, Target: dst, Succeeded: []string{}, Failed: []MergeFailure{}}
	var images []string
	if m.layout.Exists(src) {
		var err error
		if images, err = m.layout.Images(src); err != nil {
			return MergeResult{}, fmt.Errorf("listing images of %s: %w", src, err)
		}
	}

	for _, name := range images {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, MergeFailure{Image: name, Reason: err.Error()})
			continue
		}
		if _, err := m.moveLocked(src, dst, name); err != nil {
			result.Failed = append(result.Failed, MergeFailure{Image: name, Reason: failureReason(err)})
			continue
		}
		result.Succeeded = append(result.Succeeded, name)
	}

	if len(result.Failed) > 0 {
		return result, nil
	}
	if m.store.Has(src) {
		// Embeddings without a known image still belong to the same identity.
		if err := m.store.Absorb(src, dst); err != nil {
			log.Printf("cluster: merge %s -> %s kept source: %v", src, dst, err)
			return result, nil
		}
	}
	if err := m.deleteLocked(src); err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("cluster: merge %s -> %s could not delete source: %v", src, dst, err)
		return result, nil
	}
	result.SourceDeleted = true
	return result, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "image with the same name already exists in target cluster"
	case errors.Is(err, ErrNotFound):
		return "image not found"
	default:
		return err.Error()
	}
}
