package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/satsession/internal/model"
)

// CreateSession inserts a session. A PIN already used by a lobby session
// fails with ErrConflict.
func (s *Store) CreateSession(ctx context.Context, sess model.Session) (model.Session, error) {
	if sess.ID == "" {
		sess.ID = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, org_id, test_id, created_by, pin_code, status, tutor_count,
		   retest_question_count, test_duration_minutes, test_started_at, paused_at, total_paused_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OrgID, sess.TestID, sess.CreatedBy, sess.PIN, sess.Status, sess.TutorCount,
		sess.RetestQuestionCount, sess.TestDurationMinutes, sess.TestStartedAt, sess.PausedAt,
		sess.TotalPausedMs, sess.CreatedAt,
	)
	if err != nil {
		return sess, conflict(err, "pin "+sess.PIN)
	}
	return sess, nil
}

const sessionColumns = `id, org_id, test_id, created_by, pin_code, status, tutor_count, retest_question_count,
	test_duration_minutes, test_started_at, paused_at, total_paused_ms, created_at`

func scanSession(row scanner) (model.Session, error) {
	var sess model.Session
	err := row.Scan(&sess.ID, &sess.OrgID, &sess.TestID, &sess.CreatedBy, &sess.PIN, &sess.Status,
		&sess.TutorCount, &sess.RetestQuestionCount, &sess.TestDurationMinutes,
		&sess.TestStartedAt, &sess.PausedAt, &sess.TotalPausedMs, &sess.CreatedAt)
	return sess, err
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (model.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return sess, notFound(err, "session "+id)
	}
	return sess, nil
}

// FindJoinableSession returns the newest lobby or testing session with pin.
func (s *Store) FindJoinableSession(ctx context.Context, pin string) (model.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE pin_code = ? AND status IN (?, ?)
		 ORDER BY created_at DESC LIMIT 1`,
		pin, model.StatusLobby, model.StatusTesting))
	if err != nil {
		return sess, notFound(err, "session with pin")
	}
	return sess, nil
}

// ListSessions returns an organization's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, orgID string) ([]model.Session, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE org_id = ? ORDER BY created_at DESC`, orgID)
}

// ListAllSessions returns every session, oldest first.
func (s *Store) ListAllSessions(ctx context.Context) ([]model.Session, error) {
	return s.querySessions(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at`)
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SwapSessionState writes the phase and clock fields of sess only if the
// stored status still equals from. It returns ErrConflict when another
// writer changed the status first and ErrNotFound when the session is gone.
func (s *Store) SwapSessionState(ctx context.Context, sess model.Session, from model.SessionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, test_started_at = ?, paused_at = ?, total_paused_ms = ?
		 WHERE id = ? AND status = ?`,
		sess.Status, sess.TestStartedAt, sess.PausedAt, sess.TotalPausedMs, sess.ID, from,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetSession(ctx, sess.ID); err != nil {
		return err
	}
	return fmt.Errorf("session %s is no longer %s: %w", sess.ID, from, model.ErrConflict)
}

// DeleteSession removes a session and everything hanging off it in one
// transaction, children first.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	steps := []string{
		`DELETE FROM retest_answers WHERE session_id = ?`,
		`DELETE FROM retest_questions WHERE session_id = ?`,
		`DELETE FROM retest_assemblies WHERE session_id = ?`,
		`DELETE FROM student_answers WHERE session_id = ?`,
		`DELETE FROM lesson_plans WHERE session_id = ?`,
		`DELETE FROM lesson_group_students WHERE group_id IN (SELECT id FROM lesson_groups WHERE session_id = ?)`,
		`DELETE FROM lesson_groups WHERE session_id = ?`,
		`DELETE FROM progress_reports WHERE session_id = ?`,
		`DELETE FROM session_students WHERE session_id = ?`,
		`DELETE FROM analysis_jobs WHERE session_id = ?`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete session children: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	return tx.Commit()
}
