package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

const (
	requestColumns = `request_id, email, cluster_id, image_path, status, submitted_at`
	insertRequest  = `INSERT INTO requests (` + requestColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	selectRequest  = `SELECT ` + requestColumns + ` FROM requests WHERE request_id = $1`
	// NULL status lists every request
	listRequests = `SELECT ` + requestColumns + ` FROM requests
		WHERE $1::text IS NULL OR status = $1::text
		ORDER BY submitted_at DESC, request_id DESC LIMIT $2`
	countByStatus    = `SELECT status, COUNT(*) FROM requests GROUP BY status`
	compareAndUpdate = `UPDATE requests SET status = $3 WHERE request_id = $1 AND status = $2`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (database.Request, error) {
	var (
		r      database.Request
		status string
	)
	if err := s.Scan(&r.ID, &r.Email, &r.ClusterID, &r.ImagePath, &status, &r.SubmittedAt); err != nil {
		return r, err
	}
	r.Status = database.RequestStatus(status)
	return r, nil
}

func (l *Ledger) CreateRequest(ctx context.Context, req *database.Request) error {
	_, err := l.db.ExecContext(ctx, insertRequest,
		req.ID, req.Email, req.ClusterID, req.ImagePath, string(req.Status), req.SubmittedAt)
	if err != nil {
		return fmt.Errorf("inserting request %s: %w", req.ID, err)
	}
	return nil
}

func (l *Ledger) GetRequest(ctx context.Context, id string) (*database.Request, error) {
	req, err := scanRequest(l.db.QueryRowContext(ctx, selectRequest, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading request %s: %w", id, err)
	}
	return &req, nil
}

func (l *Ledger) ListRequests(ctx context.Context, status database.RequestStatus, limit int) ([]database.Request, error) {
	if limit <= 0 {
		limit = database.DefaultListLimit
	}
	filter := sql.NullString{String: string(status), Valid: status != ""}

	rows, err := l.db.QueryContext(ctx, listRequests, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	out := []database.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("listing requests: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (l *Ledger) RequestStats(ctx context.Context) (database.RequestStats, error) {
	var stats database.RequestStats
	rows, err := l.db.QueryContext(ctx, countByStatus)
	if err != nil {
		return stats, fmt.Errorf("counting requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("counting requests: %w", err)
		}
		stats.Add(database.RequestStatus(status), n)
	}
	return stats, rows.Err()
}

// TransitionRequest is a compare-and-set on the status column; a miss is
// resolved into not-found or a conflict.
func (l *Ledger) TransitionRequest(ctx context.Context, id string, from, to database.RequestStatus) error {
	res, err := l.db.ExecContext(ctx, compareAndUpdate, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating request %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	if _, err := l.GetRequest(ctx, id); err != nil {
		return err
	}
	return database.ErrStatusConflict
}
