package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/satsession/internal/model"
)

// AnswerTable selects the main test or the retest answer table.
type AnswerTable string

const (
	MainAnswers   AnswerTable = "student_answers"
	RetestAnswers AnswerTable = "retest_answers"
)

func (t AnswerTable) valid() error {
	if t != MainAnswers && t != RetestAnswers {
		return fmt.Errorf("unknown answer table %q: %w", string(t), model.ErrInvalid)
	}
	return nil
}

// UpsertAnswer inserts or replaces a student's answer to one question.
func (s *Store) UpsertAnswer(ctx context.Context, table AnswerTable, a model.Answer) error {
	if err := table.valid(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+string(table)+` (session_id, student_id, question_id, selected_answer, is_correct, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, student_id, question_id) DO UPDATE SET
		   selected_answer = excluded.selected_answer,
		   is_correct = excluded.is_correct,
		   answered_at = excluded.answered_at`,
		a.SessionID, a.StudentID, a.QuestionID, a.SelectedAnswer, a.IsCorrect, a.AnsweredAt,
	)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

// FillUnanswered records every question in questionIDs that the student has
// not answered as blank and incorrect. Existing answers are left alone.
// It returns the number of rows added.
func (s *Store) FillUnanswered(ctx context.Context, sessionID, studentID string, questionIDs []string, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	filled := 0
	for _, qid := range questionIDs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO student_answers (session_id, student_id, question_id, selected_answer, is_correct, answered_at)
			 VALUES (?, ?, ?, NULL, 0, ?)
			 ON CONFLICT(session_id, student_id, question_id) DO NOTHING`,
			sessionID, studentID, qid, at,
		)
		if err != nil {
			return 0, fmt.Errorf("fill unanswered %s: %w", qid, err)
		}
		n, _ := res.RowsAffected()
		filled += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return filled, nil
}

// ListAnswers returns the answers in table for a session. An empty
// studentID returns every student's answers.
func (s *Store) ListAnswers(ctx context.Context, table AnswerTable, sessionID, studentID string) ([]model.Answer, error) {
	if err := table.valid(); err != nil {
		return nil, err
	}
	query := `SELECT session_id, student_id, question_id, selected_answer, is_correct, answered_at
		FROM ` + string(table) + ` WHERE session_id = ?`
	args := []any{sessionID}
	if studentID != "" {
		query += ` AND student_id = ?`
		args = append(args, studentID)
	}
	query += ` ORDER BY student_id, answered_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.SessionID, &a.StudentID, &a.QuestionID, &a.SelectedAnswer, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MissedQuestionIDs returns the questions a student got wrong on the main
// test, in question-number order.
func (s *Store) MissedQuestionIDs(ctx context.Context, sessionID, studentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.question_id FROM student_answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.session_id = ? AND a.student_id = ? AND a.is_correct = 0
		 ORDER BY q.question_number`,
		sessionID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
