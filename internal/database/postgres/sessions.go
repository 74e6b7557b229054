package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

const (
	upsertSession = `INSERT INTO sessions (id, created_at, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`
	selectLiveSession = `SELECT id, created_at, expires_at FROM sessions WHERE id = $1 AND expires_at > NOW()`
)

func (l *Ledger) SaveSession(ctx context.Context, s database.StoredSession) error {
	if _, err := l.db.ExecContext(ctx, upsertSession, s.ID, s.CreatedAt, s.ExpiresAt); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// GetSession returns nil, nil for unknown or expired sessions.
func (l *Ledger) GetSession(ctx context.Context, id string) (*database.StoredSession, error) {
	var s database.StoredSession
	err := l.db.QueryRowContext(ctx, selectLiveSession, id).Scan(&s.ID, &s.CreatedAt, &s.ExpiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return &s, nil
}

func (l *Ledger) DeleteSession(ctx context.Context, id string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions expired at now.
func (l *Ledger) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return res.RowsAffected()
}
