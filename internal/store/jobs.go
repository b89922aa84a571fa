package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/satsession/internal/model"
)

// StartJob resets a session's analysis job to pending with no error.
func (s *Store) StartJob(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_jobs (session_id, status, progress, error_message, started_at, completed_at)
		 VALUES (?, ?, 0, NULL, ?, NULL)
		 ON CONFLICT(session_id) DO UPDATE SET
		   status = excluded.status,
		   progress = 0,
		   error_message = NULL,
		   started_at = excluded.started_at,
		   completed_at = NULL`,
		sessionID, model.AnalysisPending, at,
	)
	if err != nil {
		return fmt.Errorf("start analysis job: %w", err)
	}
	return nil
}

// AdvanceJob moves a running job to status at progress. The write is skipped
// if the job would move backwards or has already failed; applied reports
// whether it happened.
func (s *Store) AdvanceJob(ctx context.Context, sessionID string, status model.AnalysisStatus, progress int, at time.Time) (applied bool, err error) {
	var completedAt *time.Time
	if status == model.AnalysisComplete {
		completedAt = &at
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET status = ?, progress = ?, completed_at = ?
		 WHERE session_id = ? AND progress <= ? AND status <> ?`,
		status, progress, completedAt, sessionID, progress, model.AnalysisError,
	)
	if err != nil {
		return false, fmt.Errorf("advance analysis job: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// FailJob marks a job as failed, keeping its last progress.
func (s *Store) FailJob(ctx context.Context, sessionID, message string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET status = ?, error_message = ?, completed_at = ? WHERE session_id = ?`,
		model.AnalysisError, message, at, sessionID,
	)
	if err != nil {
		return fmt.Errorf("fail analysis job: %w", err)
	}
	return nil
}

// GetJob returns a session's analysis job.
func (s *Store) GetJob(ctx context.Context, sessionID string) (model.AnalysisJob, error) {
	var j model.AnalysisJob
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, status, progress, error_message, started_at, completed_at
		 FROM analysis_jobs WHERE session_id = ?`, sessionID,
	).Scan(&j.SessionID, &j.Status, &j.Progress, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return j, notFound(err, "analysis job "+sessionID)
	}
	return j, nil
}
