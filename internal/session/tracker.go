package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

// tracker records analysis progress for one session. Progress only moves
// forward; a failure keeps the last checkpoint.
type tracker struct {
	store     *store.Store
	sessionID string
	svc       *Service
}

func (s *Service) tracker(sessionID string) *tracker {
	return &tracker{store: s.store, sessionID: sessionID, svc: s}
}

func (t *tracker) start(ctx context.Context) error {
	return t.store.StartJob(ctx, t.sessionID, t.svc.now())
}

func (t *tracker) advance(ctx context.Context, status model.AnalysisStatus) error {
	progress, ok := status.Progress()
	if !ok {
		return fmt.Errorf("status %s has no checkpoint: %w", status, model.ErrInvalid)
	}
	applied, err := t.store.AdvanceJob(ctx, t.sessionID, status, progress, t.svc.now())
	if err != nil {
		return err
	}
	if !applied {
		slog.Debug("analysis progress not applied", "session_id", t.sessionID, "status", status)
	}
	return nil
}

func (t *tracker) fail(ctx context.Context, cause error) {
	// The run's context may already be done; the failure must still be recorded.
	ctx = context.WithoutCancel(ctx)
	if err := t.store.FailJob(ctx, t.sessionID, cause.Error(), t.svc.now()); err != nil {
		slog.Error("record analysis failure", "session_id", t.sessionID, "error", err)
	}
}

// AnalysisStatus returns the job for a session, or a not_started job when
// analysis has never run.
func (s *Service) AnalysisStatus(ctx context.Context, sessionID string) (model.AnalysisJob, error) {
	job, err := s.store.GetJob(ctx, sessionID)
	if errors.Is(err, model.ErrNotFound) {
		return model.AnalysisJob{SessionID: sessionID, Status: model.AnalysisNotStarted}, nil
	}
	return job, err
}
