// Package ingest feeds image files through the embedding service into the
// clustering engine.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/embedding"
	"github.com/v1gneshkum4r21/face-clustering/internal/layout"
)

// Clusterer places an embedded image into a cluster and stores the file.
type Clusterer interface {
	AddImage(ctx context.Context, emb cluster.Embedding, srcPath string) (string, string, error)
}

// Outcome is the result of processing one file.
type Outcome struct {
	Path      string `json:"path"`
	ClusterID string `json:"cluster_id,omitempty"`
	ImageName string `json:"image_name,omitempty"`
	NoFace    bool   `json:"no_face"`
}

// FileError records a file that could not be processed.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Summary totals a batch run.
type Summary struct {
	Total     int         `json:"total"`
	Clustered int         `json:"clustered"`
	NoFace    int         `json:"no_face"`
	Failed    int         `json:"failed"`
	Errors    []FileError `json:"errors,omitempty"`
	Clusters  []string    `json:"clusters,omitempty"`
}

// ProgressFunc is called after each file of a batch.
type ProgressFunc func(done, total int, outcome Outcome, err error)

type Pipeline struct {
	provider embedding.Provider
	clusters Clusterer
}

func NewPipeline(provider embedding.Provider, clusters Clusterer) *Pipeline {
	return &Pipeline{provider: provider, clusters: clusters}
}

// ProcessFile embeds one image and files it into a cluster. An image
// without a face is reported through Outcome.NoFace, not as an error.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (Outcome, error) {
	out := Outcome{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("reading %s: %w", path, err)
	}

	emb, err := p.provider.Embed(ctx, data)
	if errors.Is(err, cluster.ErrNoFaceDetected) {
		out.NoFace = true
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("embedding %s: %w", filepath.Base(path), err)
	}

	id, name, err := p.clusters.AddImage(ctx, emb, path)
	if err != nil {
		return out, err
	}
	out.ClusterID = id
	out.ImageName = name
	return out, nil
}

// CollectImages returns every recognised image below root, sorted by path.
func CollectImages(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && layout.IsImage(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ProcessFiles runs ProcessFile over paths. A failing file is recorded and
// the batch carries on; only cancellation stops it early.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string, onProgress ProgressFunc) (Summary, error) {
	sum := Summary{Total: len(paths)}
	seen := make(map[string]bool)

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		out, err := p.ProcessFile(ctx, path)
		switch {
		case err != nil:
			sum.Failed++
			sum.Errors = append(sum.Errors, FileError{Path: path, Err: err.Error()})
		case out.NoFace:
			sum.NoFace++
		default:
			sum.Clustered++
			if !seen[out.ClusterID] {
				seen[out.ClusterID] = true
				sum.Clusters = append(sum.Clusters, out.ClusterID)
			}
		}
		if onProgress != nil {
			onProgress(i+1, len(paths), out, err)
		}
	}
	cluster.SortIDs(sum.Clusters)
	return sum, nil
}

// ProcessDir ingests every image below root.
func (p *Pipeline) ProcessDir(ctx context.Context, root string, onProgress ProgressFunc) (Summary, error) {
	paths, err := CollectImages(root)
	if err != nil {
		return Summary{}, err
	}
	return p.ProcessFiles(ctx, paths, onProgress)
}
