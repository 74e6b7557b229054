package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

// Analyzer finds pairs of clusters that likely hold the same person
type Analyzer interface {
	FindSimilarPairs(ctx context.Context, threshold float64) ([]cluster.SimilarPair, error)
}

// Report is the cached outcome of the last similarity analysis
type Report struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Threshold   float64               `json:"threshold"`
	Pairs       []cluster.SimilarPair `json:"pairs"`
}

// AnalysisTask runs the cluster similarity analysis and keeps the latest
// report so merge suggestions can be served without recomputing.
type AnalysisTask struct {
	analyzer  Analyzer
	threshold float64

	mu     sync.RWMutex
	latest *Report
}

func NewAnalysisTask(analyzer Analyzer, threshold float64) *AnalysisTask {
	return &AnalysisTask{analyzer: analyzer, threshold: threshold}
}

func (t *AnalysisTask) Name() string { return "similarity_analysis" }

func (t *AnalysisTask) Description() string {
	return fmt.Sprintf("Finds cluster pairs with similarity above %.2f", t.threshold)
}

func (t *AnalysisTask) Execute(ctx context.Context) TaskResult {
	pairs, err := t.analyzer.FindSimilarPairs(ctx, t.threshold)
	if err != nil {
		return TaskResult{Message: "similarity analysis failed", Error: err.Error()}
	}

	t.mu.Lock()
	t.latest = &Report{GeneratedAt: time.Now().UTC(), Threshold: t.threshold, Pairs: pairs}
	t.mu.Unlock()

	return TaskResult{
		Success:          true,
		Message:          fmt.Sprintf("found %d similar pairs", len(pairs)),
		RecordsProcessed: len(pairs),
	}
}

// Latest returns the most recent report, or nil before the first run.
func (t *AnalysisTask) Latest() *Report {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// SessionCleanupTask drops expired admin sessions
type SessionCleanupTask struct {
	sessions database.SessionStore
	now      func() time.Time
}

func NewSessionCleanupTask(sessions database.SessionStore) *SessionCleanupTask {
	return &SessionCleanupTask{sessions: sessions, now: time.Now}
}

func (t *SessionCleanupTask) Name() string { return "session_cleanup" }

func (t *SessionCleanupTask) Description() string {
	return "Deletes expired admin sessions"
}

func (t *SessionCleanupTask) Execute(ctx context.Context) TaskResult {
	n, err := t.sessions.DeleteExpiredSessions(ctx, t.now())
	if err != nil {
		return TaskResult{Message: "session cleanup failed", Error: err.Error()}
	}
	return TaskResult{
		Success:          true,
		Message:          fmt.Sprintf("deleted %d expired sessions", n),
		RecordsProcessed: int(n),
	}
}
