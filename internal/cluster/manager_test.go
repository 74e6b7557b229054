package cluster_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/facestore"
	"github.com/v1gneshkum4r21/face-clustering/internal/layout"
)

type fixture struct {
	dir     string
	store   *facestore.Store
	layout  *layout.Layout
	manager *cluster.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	results := filepath.Join(dir, "results")
	lay, err := layout.New(results)
	require.NoError(t, err)
	store, err := facestore.Open(filepath.Join(results, "encodings.json"))
	require.NoError(t, err)

	return &fixture{
		dir:     dir,
		store:   store,
		layout:  lay,
		manager: cluster.NewManager(store, lay, cluster.WithTolerance(0.6)),
	}
}

// image writes a throwaway source image and returns its path.
func (f *fixture) image(t *testing.T, name string) string {
	t.Helper()
	srcDir := filepath.Join(f.dir, "src", t.Name())
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	path := filepath.Join(srcDir, name)
	require.NoError(t, os.WriteFile(path, []byte("img:"+name), 0o644))
	return path
}

// seed places an image and its embedding into a specific cluster.
func (f *fixture) seed(t *testing.T, id string, emb cluster.Embedding, name string) {
	t.Helper()
	stored, err := f.layout.Add(id, f.image(t, name))
	require.NoError(t, err)
	require.NoError(t, f.store.Append(id, emb, stored))
}

// breakPersistence makes the next store write fail.
func (f *fixture) breakPersistence(t *testing.T) func() {
	t.Helper()
	side := facestore.SidecarPath(f.store.Path())
	_ = os.Remove(side)
	require.NoError(t, os.Mkdir(side, 0o755))
	return func() { require.NoError(t, os.Remove(side)) }
}

func TestAssign_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.manager.Assign(ctx, cluster.Embedding{0, 0}, "v1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cluster_1", id)

	id, err = f.manager.Assign(ctx, cluster.Embedding{0.3, 0}, "v2.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cluster_1", id)

	embs, ok := f.store.Get("cluster_1")
	require.True(t, ok)
	assert.Equal(t, []cluster.Embedding{{0, 0}, {0.3, 0}}, embs)

	id, err = f.manager.Assign(ctx, cluster.Embedding{5, 5}, "v3.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cluster_2", id)

	reopened, err := facestore.Open(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, f.store.Snapshot(), reopened.Snapshot())
}

func TestAssign_GlobalNearestNeighbour(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Assign(ctx, cluster.Embedding{0, 0}, "a.jpg")
	require.NoError(t, err)
	_, err = f.manager.Assign(ctx, cluster.Embedding{1, 0}, "b.jpg")
	require.NoError(t, err)

	// within tolerance of both, closer to cluster_2
	id, err := f.manager.Assign(ctx, cluster.Embedding{0.55, 0}, "c.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cluster_2", id)
}

func TestAssign_TieGoesToLowerID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, v := range []float64{0, 1} {
		id, err := f.manager.Assign(ctx, cluster.Embedding{v}, "seed.jpg")
		require.NoError(t, err)
		assert.Equal(t, cluster.FormatID(i+1), id)
	}

	id, err := f.manager.Assign(ctx, cluster.Embedding{0.5}, "tie.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cluster_1", id)
}

func TestAssign_FarEmbeddingsStaySeparate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.manager.Assign(ctx, cluster.Embedding{0, 0}, "a.jpg")
	require.NoError(t, err)
	b, err := f.manager.Assign(ctx, cluster.Embedding{0.6, 0}, "b.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "distance equal to tolerance is not a match")
}

func TestAssign_IDsNeverReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Assign(ctx, cluster.Embedding{0, 0}, "a.jpg")
	require.NoError(t, err)
	second, err := f.manager.Assign(ctx, cluster.Embedding{9, 9}, "b.jpg")
	require.NoError(t, err)
	require.Equal(t, "cluster_2", second)

	require.NoError(t, f.manager.DeleteCluster(ctx, second))

	reopened, err := facestore.Open(f.store.Path())
	require.NoError(t, err)
	m := cluster.NewManager(reopened, f.layout)

	id, err := m.Assign(ctx, cluster.Embedding{-9, -9}, "c.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cluster_3", id)
}

func TestAssign_PersistFailureLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	restore := f.breakPersistence(t)
	_, err := f.manager.Assign(ctx, cluster.Embedding{0, 0}, "a.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrStoreIO)
	assert.False(t, f.store.Has("cluster_1"))

	restore()
	id, err := f.manager.Assign(ctx, cluster.Embedding{0, 0}, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cluster_1", id)
}

func TestAssign_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.Assign(ctx, cluster.Embedding{0, 0}, "a.jpg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.IDs())
}

func TestMatch_IsReadOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cluster_1", cluster.Embedding{0, 0}, "a.jpg")

	id, dist, ok := f.manager.Match(cluster.Embedding{0.1, 0})
	require.True(t, ok)
	assert.Equal(t, "cluster_1", id)
	assert.InDelta(t, 0.1, dist, 1e-12)

	_, _, ok = f.manager.Match(cluster.Embedding{3, 3})
	assert.False(t, ok)

	embs, _ := f.store.Get("cluster_1")
	assert.Len(t, embs, 1)
}

func TestAddImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, name, err := f.manager.AddImage(ctx, cluster.Embedding{0, 0}, f.image(t, "face.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "cluster_1", id)
	assert.Equal(t, "face.jpg", name)
	assert.True(t, f.layout.HasImage(id, name))
	assert.Equal(t, []string{"face.jpg"}, f.store.Refs(id))

	// same file name again lands next to the first one
	_, name, err = f.manager.AddImage(ctx, cluster.Embedding{0.1, 0}, f.image(t, "face.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "face_1.jpg", name)
}

func TestAddImage_RollsBackFileOnStoreFailure(t *testing.T) {
	f := newFixture(t)

	restore := f.breakPersistence(t)
	defer restore()

	_, _, err := f.manager.AddImage(context.Background(), cluster.Embedding{0, 0}, f.image(t, "face.jpg"))
	require.ErrorIs(t, err, cluster.ErrStoreIO)
	assert.False(t, f.layout.Exists("cluster_1"))
	assert.False(t, f.store.Has("cluster_1"))
}

func TestClusters_ListsStoreAndDisk(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "cluster_2", cluster.Embedding{0, 0}, "a.jpg")
	f.seed(t, "cluster_2", cluster.Embedding{0, 0.1}, "b.jpg")
	require.NoError(t, os.MkdirAll(filepath.Join(f.layout.Root(), "cluster_10"), 0o755))
	require.NoError(t, f.store.Append("cluster_1", cluster.Embedding{4, 4}, ""))

	got, err := f.manager.Clusters()
	require.NoError(t, err)
	assert.Equal(t, []cluster.Summary{
		{ID: "cluster_1", ImageCount: 0, FaceCount: 1},
		{ID: "cluster_2", ImageCount: 2, FaceCount: 2},
		{ID: "cluster_10", ImageCount: 0, FaceCount: 0},
	}, got)

	_, err = f.manager.Cluster("missing")
	assert.ErrorIs(t, err, cluster.ErrNotFound)
}

func TestAddImage_SkipsDirectoryOnlyClusters(t *testing.T) {
	dir := t.TempDir()
	results := filepath.Join(dir, "results")
	lay, err := layout.New(results)
	require.NoError(t, err)
	encodings := filepath.Join(results, "encodings.json")
	require.NoError(t, os.WriteFile(encodings, []byte(`{"cluster_1": [[0, 0]]}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(results, "cluster_1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(results, "cluster_1", "a.jpg"), []byte("a"), 0o644))

	store, err := facestore.Open(encodings)
	require.NoError(t, err)
	m := cluster.NewManager(store, lay)
	ctx := context.Background()

	res, err := m.MoveImage(ctx, "cluster_1", "cluster_2", "a.jpg")
	require.NoError(t, err)
	require.False(t, res.EmbeddingMoved)

	src := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(src, []byte("b"), 0o644))
	id, _, err := m.AddImage(ctx, cluster.Embedding{9, 9}, src)
	require.NoError(t, err)
	assert.Equal(t, "cluster_3", id)

	images, err := lay.Images("cluster_2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, images)
}

func TestAssign_SkipsUnknownDirectories(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.layout.Root(), "cluster_1"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(f.layout.Root(), "cluster_2"), 0o755))

	id, err := f.manager.Assign(context.Background(), cluster.Embedding{0, 0}, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "cluster_3", id)
}
