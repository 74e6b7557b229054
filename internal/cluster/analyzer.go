package cluster

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Similarity is the pairwise match ratio between two clusters.
type Similarity struct {
	ClusterA      string  `json:"cluster_a"`
	ClusterB      string  `json:"cluster_b"`
	Score         float64 `json:"score"`
	MatchingCount int     `json:"matching_count"`
	SizeA         int     `json:"size_a"`
	SizeB         int     `json:"size_b"`
}

// SimilarPair is a merge suggestion produced by FindSimilarPairs.
type SimilarPair struct {
	ClusterA      string  `json:"cluster_a"`
	ClusterB      string  `json:"cluster_b"`
	Score         float64 `json:"score"`
	MatchingCount int     `json:"matching_count"`
}

// compare counts cross pairs closer than tolerance. Score is the fraction of
// all |a|*|b| cross pairs that match; it is zero when either side is empty.
func compare(a, b []Embedding, tolerance float64) (int, float64) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	matches := 0
	for _, ea := range a {
		for _, eb := range b {
			if Distance(ea, eb) < tolerance {
				matches++
			}
		}
	}
	return matches, float64(matches) / float64(len(a)*len(b))
}

// CompareClusters scores how alike two stored clusters are.
func (m *Manager) CompareClusters(a, b string) (Similarity, error) {
	m.mu.RLock()
	embsA, okA := m.store.Get(a)
	embsB, okB := m.store.Get(b)
	m.mu.RUnlock()

	if !okA {
		return Similarity{}, fmt.Errorf("cluster %s: %w", a, ErrNotFound)
	}
	if !okB {
		return Similarity{}, fmt.Errorf("cluster %s: %w", b, ErrNotFound)
	}
	count, score := compare(embsA, embsB, m.tolerance)
	return Similarity{
		ClusterA:      a,
		ClusterB:      b,
		Score:         score,
		MatchingCount: count,
		SizeA:         len(embsA),
		SizeB:         len(embsB),
	}, nil
}

// FindSimilarPairs compares every unordered pair of non-empty clusters and
// returns those scoring above threshold, best first. It works on a snapshot
// and never modifies the store.
func (m *Manager) FindSimilarPairs(ctx context.Context, threshold float64) ([]SimilarPair, error) {
	m.mu.RLock()
	snapshot := m.store.Snapshot()
	m.mu.RUnlock()

	ids := make([]string, 0, len(snapshot))
	for id, embs := range snapshot {
		if len(embs) > 0 {
			ids = append(ids, id)
		}
	}
	SortIDs(ids)

	type pair struct{ a, b string }
	pairs := make([]pair, 0, len(ids)*(len(ids)-1)/2)
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			pairs = append(pairs, pair{ids[i], ids[j]})
		}
	}

	results := make([]SimilarPair, len(pairs))
	keep := make([]bool, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			count, score := compare(snapshot[p.a], snapshot[p.b], m.tolerance)
			if score > threshold {
				results[i] = SimilarPair{ClusterA: p.a, ClusterB: p.b, Score: score, MatchingCount: count}
				keep[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing cluster pairs: %w", err)
	}

	out := make([]SimilarPair, 0)
	for i, r := range results {
		if keep[i] {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(x, y SimilarPair) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		}
		if c := CompareIDs(x.ClusterA, y.ClusterA); c != 0 {
			return c
		}
		return CompareIDs(x.ClusterB, y.ClusterB)
	})
	return out, nil
}
