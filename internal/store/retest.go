package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/satsession/internal/model"
)

// SaveRetest claims the (session, student) assembly slot and writes the
// retest questions in one transaction. If the slot was already claimed
// nothing is written and created is false.
func (s *Store) SaveRetest(ctx context.Context, sessionID, studentID string, items []model.RetestQuestion, at time.Time) (created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO retest_assemblies (session_id, student_id, assembled_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id, student_id) DO NOTHING`,
		sessionID, studentID, at,
	)
	if err != nil {
		return false, fmt.Errorf("claim retest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO retest_questions (session_id, student_id, question_id, source, question_order)
			 VALUES (?, ?, ?, ?, ?)`,
			sessionID, studentID, it.QuestionID, it.Source, it.Order,
		)
		if err != nil {
			return false, conflict(fmt.Errorf("insert retest question %s: %w", it.QuestionID, err), "retest question")
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// ListRetestQuestions returns a student's retest questions in order.
func (s *Store) ListRetestQuestions(ctx context.Context, sessionID, studentID string) ([]model.RetestQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, student_id, question_id, source, question_order
		 FROM retest_questions WHERE session_id = ? AND student_id = ?
		 ORDER BY question_order`,
		sessionID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RetestQuestion
	for rows.Next() {
		var rq model.RetestQuestion
		if err := rows.Scan(&rq.SessionID, &rq.StudentID, &rq.QuestionID, &rq.Source, &rq.Order); err != nil {
			return nil, err
		}
		out = append(out, rq)
	}
	return out, rows.Err()
}

// CountRetestQuestions returns how many retest rows a student has.
func (s *Store) CountRetestQuestions(ctx context.Context, sessionID, studentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM retest_questions WHERE session_id = ? AND student_id = ?`,
		sessionID, studentID,
	).Scan(&n)
	return n, err
}
