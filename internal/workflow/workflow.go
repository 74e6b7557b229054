// Package workflow implements the public submission flow and the admin
// review of the requests it creates.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/cluster"
	"github.com/v1gneshkum4r21/face-clustering/internal/database"
	"github.com/v1gneshkum4r21/face-clustering/internal/ingest"
	"github.com/v1gneshkum4r21/face-clustering/internal/layout"
	"github.com/v1gneshkum4r21/face-clustering/internal/notify"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrUnsupportedFile = errors.New("only .jpg, .jpeg and .png images are accepted")
	ErrNotifyFailed    = errors.New("notification failed")
)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// FileProcessor files one image into a cluster.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (ingest.Outcome, error)
}

// Notifier shares a cluster with the person who requested it.
type Notifier interface {
	Notify(ctx context.Context, email, clusterID string) notify.Result
}

// Submission is returned to the person who uploaded a photo.
type Submission struct {
	RequestID string                 `json:"request_id"`
	ClusterID string                 `json:"cluster_id"`
	Status    database.RequestStatus `json:"status"`
}

type Service struct {
	processor FileProcessor
	ledger    database.RequestWriter
	notifier  Notifier
	stageDir  string
	now       func() time.Time
}

// NewService wires the workflow. Uploads are staged below stageDir, which
// defaults to the system temp directory when empty.
func NewService(processor FileProcessor, ledger database.RequestWriter, notifier Notifier, stageDir string) *Service {
	return &Service{
		processor: processor,
		ledger:    ledger,
		notifier:  notifier,
		stageDir:  stageDir,
		now:       time.Now,
	}
}

// stage writes data to a private temp directory under its original base
// name so the name carries into the cluster directory.
func (s *Service) stage(filename string, data []byte) (string, func(), error) {
	dir, err := os.MkdirTemp(s.stageDir, "upload-")
	if err != nil {
		return "", nil, fmt.Errorf("creating staging directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("staging upload: %w", err)
	}
	return path, cleanup, nil
}

// Submit clusters an uploaded photo and records a pending request for it.
// A photo without a face yields cluster.ErrNoFaceDetected and no request.
func (s *Service) Submit(ctx context.Context, email, filename string, data []byte) (*Submission, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) || !layout.IsImage(base) {
		return nil, ErrUnsupportedFile
	}

	path, cleanup, err := s.stage(base, data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outcome, err := s.processor.ProcessFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if outcome.NoFace {
		return nil, cluster.ErrNoFaceDetected
	}

	req := &database.Request{
		ID:          database.NewRequestID(s.now()),
		Email:       email,
		ClusterID:   outcome.ClusterID,
		ImagePath:   outcome.ClusterID + "/" + outcome.ImageName,
		Status:      database.StatusPending,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.ledger.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("recording request: %w", err)
	}
	log.Printf("workflow: request %s assigned to %s", req.ID, req.ClusterID)

	return &Submission{RequestID: req.ID, ClusterID: req.ClusterID, Status: req.Status}, nil
}

// Status looks up a request on behalf of the person who submitted it. A
// wrong email is indistinguishable from an unknown id.
func (s *Service) Status(ctx context.Context, id, email string) (*database.Request, error) {
	req, err := s.ledger.GetRequest(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(req.Email, strings.TrimSpace(email)) {
		return nil, database.ErrRequestNotFound
	}
	return req, nil
}

// StatusMessage is the text shown to a requester for a status.
func StatusMessage(status database.RequestStatus) string {
	switch status {
	case database.StatusPending:
		return "Your request is still being processed. We'll email you when complete."
	case database.StatusApproved:
		return "Your request was approved! Check your email for the matches."
	case database.StatusRejected:
		return "Your request was rejected. Please try uploading a clearer photo."
	}
	return ""
}

func (s *Service) pending(ctx context.Context, id string) (*database.Request, error) {
	req, err := s.ledger.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != database.StatusPending {
		return nil, fmt.Errorf("request %s is %s: %w", id, req.Status, database.ErrStatusConflict)
	}
	return req, nil
}

// Approve shares the request's cluster with the requester and marks the
// request approved. When the notification fails the request stays pending
// and the returned error wraps ErrNotifyFailed with the reason.
func (s *Service) Approve(ctx context.Context, id string) (notify.Result, error) {
	req, err := s.pending(ctx, id)
	if err != nil {
		return notify.Result{}, err
	}

	res := s.notifier.Notify(ctx, req.Email, req.ClusterID)
	if !res.OK {
		log.Printf("workflow: approving %s failed: %s", id, res.Reason)
		return res, fmt.Errorf("%w: %s", ErrNotifyFailed, res.Reason)
	}

	if err := s.ledger.TransitionRequest(ctx, id, database.StatusPending, database.StatusApproved); err != nil {
		return res, fmt.Errorf("approving request %s: %w", id, err)
	}
	return res, nil
}

// Reject marks a pending request rejected.
func (s *Service) Reject(ctx context.Context, id string) error {
	if _, err := s.pending(ctx, id); err != nil {
		return err
	}
	if err := s.ledger.TransitionRequest(ctx, id, database.StatusPending, database.StatusRejected); err != nil {
		return fmt.Errorf("rejecting request %s: %w", id, err)
	}
	return nil
}
