package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/satsession/internal/analysis"
	"github.com/pavelanni/satsession/internal/metrics"
	"github.com/pavelanni/satsession/internal/model"
)

// NextStatus returns the phase that follows status.
func NextStatus(status model.SessionStatus) (model.SessionStatus, error) {
	switch status {
	case model.StatusLobby:
		return model.StatusTesting, nil
	case model.StatusTesting, model.StatusPaused:
		return model.StatusAnalyzing, nil
	case model.StatusAnalyzing, model.StatusLesson:
		return model.StatusRetest, nil
	case model.StatusRetest:
		return model.StatusComplete, nil
	}
	return "", model.ErrCannotAdvance
}

// Advance moves a session to its next phase and starts the background work
// that phase needs. The background work is not awaited.
func (s *Service) Advance(ctx context.Context, sessionID string) (model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return sess, err
	}
	next, err := NextStatus(sess.Status)
	if err != nil {
		return sess, err
	}

	now := s.now()
	updated := sess
	updated.Status = next
	if sess.Status == model.StatusPaused {
		endPause(&updated, now)
	}
	if next == model.StatusTesting && updated.TestStartedAt == nil {
		updated.TestStartedAt = &now
	}

	if err := s.store.SwapSessionState(ctx, updated, sess.Status); err != nil {
		return sess, fmt.Errorf("advance session: %w", err)
	}
	metrics.RecordPhaseTransition(string(sess.Status), string(next))
	slog.Info("session advanced", "session_id", sessionID, "from", sess.Status, "to", next)

	switch next {
	case model.StatusAnalyzing:
		if err := s.StartAnalysis(ctx, sessionID); err != nil {
			slog.Error("start analysis", "session_id", sessionID, "error", err)
		}
	case model.StatusRetest:
		if err := s.StartRetestPreparation(ctx, sessionID); err != nil {
			slog.Error("start retest preparation", "session_id", sessionID, "error", err)
		}
	}
	return updated, nil
}

// TogglePause pauses a running test or resumes a paused one.
func (s *Service) TogglePause(ctx context.Context, sessionID string) (model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return sess, err
	}

	now := s.now()
	updated := sess
	switch sess.Status {
	case model.StatusTesting:
		updated.Status = model.StatusPaused
		updated.PausedAt = &now
	case model.StatusPaused:
		updated.Status = model.StatusTesting
		endPause(&updated, now)
	default:
		return sess, fmt.Errorf("can only pause/resume during testing: %w", model.ErrInvalid)
	}

	if err := s.store.SwapSessionState(ctx, updated, sess.Status); err != nil {
		return sess, fmt.Errorf("toggle pause: %w", err)
	}
	metrics.RecordPhaseTransition(string(sess.Status), string(updated.Status))
	slog.Info("session pause toggled", "session_id", sessionID, "status", updated.Status, "total_paused_ms", updated.TotalPausedMs)
	return updated, nil
}

// endPause folds an open pause into the accumulated total.
func endPause(sess *model.Session, now time.Time) {
	if sess.PausedAt == nil {
		return
	}
	if d := now.Sub(*sess.PausedAt); d > 0 {
		sess.TotalPausedMs += d.Milliseconds()
	}
	sess.PausedAt = nil
}

// RosterEntry is a student as shown on the public status board.
type RosterEntry struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Submitted bool   `json:"submitted"`
}

// StatusView is the public view of a session: phase, clock and roster.
type StatusView struct {
	SessionID           string              `json:"sessionId"`
	Status              model.SessionStatus `json:"status"`
	TestStartedAt       *time.Time          `json:"testStartedAt"`
	TestDurationMinutes int                 `json:"testDurationMinutes"`
	PausedAt            *time.Time          `json:"pausedAt"`
	TotalPausedMs       int64               `json:"totalPausedMs"`
	RemainingMs         *int64              `json:"remainingMs,omitempty"`
	Remaining           string              `json:"remaining,omitempty"`
	Students            []RosterEntry       `json:"students"`
}

// Status returns the public view of a session.
func (s *Service) Status(ctx context.Context, sessionID string) (StatusView, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return StatusView{}, err
	}
	roster, err := s.store.ListSessionStudents(ctx, sessionID)
	if err != nil {
		return StatusView{}, fmt.Errorf("list roster: %w", err)
	}

	v := StatusView{
		SessionID:           sess.ID,
		Status:              sess.Status,
		TestStartedAt:       sess.TestStartedAt,
		TestDurationMinutes: sess.TestDurationMinutes,
		PausedAt:            sess.PausedAt,
		TotalPausedMs:       sess.TotalPausedMs,
		Students:            make([]RosterEntry, 0, len(roster)),
	}
	if sess.TestStartedAt != nil && (sess.Status == model.StatusTesting || sess.Status == model.StatusPaused) {
		left := analysis.RemainingTime(*sess.TestStartedAt, sess.TestDurationMinutes,
			time.Duration(sess.TotalPausedMs)*time.Millisecond, sess.PausedAt, s.now())
		ms := left.Milliseconds()
		v.RemainingMs = &ms
		v.Remaining = analysis.FormatClock(left)
	}
	for _, r := range roster {
		v.Students = append(v.Students, RosterEntry{StudentID: r.StudentID, Name: r.StudentName, Submitted: r.TestSubmitted})
	}
	return v, nil
}
