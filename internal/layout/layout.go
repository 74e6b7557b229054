// Package layout manages the results directory: one sub-directory of images
// per cluster.
package layout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// IsImage reports whether a file name has a recognised image extension.
func IsImage(name string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(name)))
}

// Layout is a cluster.Layout rooted at a results directory.
type Layout struct {
	root string
}

var _ cluster.Layout = (*Layout)(nil)

// New returns a layout rooted at dir, creating the directory if needed.
func New(dir string) (*Layout, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	return &Layout{root: dir}, nil
}

// Root returns the results directory.
func (l *Layout) Root() string {
	return l.root
}

func safeName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

func (l *Layout) dir(id string) (string, error) {
	if !safeName(id) {
		return "", fmt.Errorf("cluster %q: %w", id, cluster.ErrInvalidName)
	}
	return filepath.Join(l.root, id), nil
}

// Clusters lists cluster directories in cluster order. Hidden directories
// are skipped.
func (l *Layout) Clusters() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", l.root, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	cluster.SortIDs(ids)
	return ids, nil
}

func (l *Layout) Exists(id string) bool {
	dir, err := l.dir(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Images lists the image files of a cluster, sorted by name.
func (l *Layout) Images(id string) ([]string, error) {
	dir, err := l.dir(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cluster %s: %w", id, cluster.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && IsImage(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (l *Layout) HasImage(id, name string) bool {
	path, err := l.ImagePath(id, name)
	if err != nil || !IsImage(name) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ImagePath returns the file path of an image without checking that it exists.
func (l *Layout) ImagePath(id, name string) (string, error) {
	dir, err := l.dir(id)
	if err != nil {
		return "", err
	}
	if !safeName(name) {
		return "", fmt.Errorf("image %q: %w", name, cluster.ErrNotFound)
	}
	return filepath.Join(dir, name), nil
}

// Add copies srcPath into the cluster directory and returns the stored file
// name. A numeric suffix is added when the name is already taken.
func (l *Layout) Add(id, srcPath string) (string, error) {
	dir, err := l.dir(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	base := filepath.Base(srcPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := base
	for i := 1; ; i++ {
		err := copyFile(srcPath, filepath.Join(dir, name))
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		name = stem + "_" + strconv.Itoa(i) + ext
	}
}

// Move relocates an image between cluster directories, creating the target
// directory if needed. It never overwrites an existing file.
func (l *Layout) Move(srcID, dstID, name string) error {
	src, err := l.ImagePath(srcID, name)
	if err != nil {
		return err
	}
	dst, err := l.ImagePath(dstID, name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("image %s in %s: %w", name, srcID, cluster.ErrNotFound)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}

	if err := copyFile(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("image %s in %s: %w", name, dstID, cluster.ErrConflict)
		}
		return err
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("removing %s: %w", src, err)
	}
	return nil
}

func (l *Layout) DeleteImage(id, name string) error {
	path, err := l.ImagePath(id, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("image %s in %s: %w", name, id, cluster.ErrNotFound)
		}
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// RemoveCluster deletes a cluster directory and everything in it.
func (l *Layout) RemoveCluster(id string) error {
	dir, err := l.dir(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cluster %s: %w", id, cluster.ErrNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}

func (l *Layout) RenameCluster(oldID, newID string) error {
	oldDir, err := l.dir(oldID)
	if err != nil {
		return err
	}
	newDir, err := l.dir(newID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(oldDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cluster %s: %w", oldID, cluster.ErrNotFound)
	}
	if _, err := os.Stat(newDir); err == nil {
		return fmt.Errorf("cluster %s: %w", newID, cluster.ErrConflict)
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("renaming %s: %w", oldDir, err)
	}
	return nil
}

// Stats summarises the results directory.
type Stats struct {
	Clusters  int    `json:"total_clusters"`
	Images    int    `json:"total_images"`
	Bytes     int64  `json:"storage_bytes"`
	SizeHuman string `json:"storage_used"`
}

func (l *Layout) Stats() (Stats, error) {
	ids, err := l.Clusters()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Clusters: len(ids)}
	for _, id := range ids {
		names, err := l.Images(id)
		if err != nil {
			return Stats{}, err
		}
		st.Images += len(names)
		for _, name := range names {
			if info, err := os.Stat(filepath.Join(l.root, id, name)); err == nil {
				st.Bytes += info.Size()
			}
		}
	}
	st.SizeHuman = humanize.Bytes(uint64(st.Bytes))
	return st, nil
}

// copyFile copies src to dst, failing with os.ErrExist if dst is present.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return nil
}
