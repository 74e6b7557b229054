package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

const requestColumns = `request_id, email, cluster_id, image_path, status, submitted_at`

func scanRequest(row interface{ Scan(...any) error }) (database.Request, error) {
	var r database.Request
	var status, submitted string
	if err := row.Scan(&r.ID, &r.Email, &r.ClusterID, &r.ImagePath, &status, &submitted); err != nil {
		return r, err
	}
	r.Status = database.RequestStatus(status)
	t, err := parseTime(submitted)
	if err != nil {
		return r, fmt.Errorf("parse submitted_at %q: %w", submitted, err)
	}
	r.SubmittedAt = t
	return r, nil
}

// CreateRequest stores a new request
func (l *Ledger) CreateRequest(ctx context.Context, req *database.Request) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO requests (request_id, email, cluster_id, image_path, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.Email, req.ClusterID, req.ImagePath, string(req.Status), formatTime(req.SubmittedAt))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by id
func (l *Ledger) GetRequest(ctx context.Context, id string) (*database.Request, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE request_id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

// ListRequests returns requests newest first, optionally filtered by status
func (l *Ledger) ListRequests(ctx context.Context, status database.RequestStatus, limit int) ([]database.Request, error) {
	if limit <= 0 {
		limit = database.DefaultListLimit
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY submitted_at DESC, request_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := []database.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

// RequestStats counts requests per status
func (l *Ledger) RequestStats(ctx context.Context) (database.RequestStats, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status`)
	if err != nil {
		return database.RequestStats{}, fmt.Errorf("request stats: %w", err)
	}
	defer rows.Close()

	var stats database.RequestStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return database.RequestStats{}, fmt.Errorf("scan request stats: %w", err)
		}
		stats.Add(database.RequestStatus(status), n)
	}
	if err := rows.Err(); err != nil {
		return database.RequestStats{}, fmt.Errorf("iterate request stats: %w", err)
	}
	return stats, nil
}

// TransitionRequest changes a request's status if it is currently in from
func (l *Ledger) TransitionRequest(ctx context.Context, id string, from, to database.RequestStatus) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE requests SET status = ? WHERE request_id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := l.GetRequest(ctx, id); err != nil {
		return err
	}
	return database.ErrStatusConflict
}

// SaveSession stores or refreshes a session
func (l *Ledger) SaveSession(ctx context.Context, s database.StoredSession) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET created_at = excluded.created_at, expires_at = excluded.expires_at`,
		s.ID, formatTime(s.CreatedAt), formatTime(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID, returns nil if not found or expired
func (l *Ledger) GetSession(ctx context.Context, id string) (*database.StoredSession, error) {
	var s database.StoredSession
	var created, expires string
	err := l.db.QueryRowContext(ctx,
		`SELECT id, created_at, expires_at FROM sessions WHERE id = ? AND expires_at > ?`,
		id, formatTime(time.Now())).Scan(&s.ID, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if s.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if s.ExpiresAt, err = parseTime(expires); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &s, nil
}

// DeleteSession removes a session
func (l *Ledger) DeleteSession(ctx context.Context, id string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions expired at now and returns the count deleted
func (l *Ledger) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}
