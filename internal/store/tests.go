package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/satsession/internal/model"
)

// CreateTest inserts a test with its questions in one transaction.
// Question IDs are assigned here; the caller's numbering is kept.
func (s *Store) CreateTest(ctx context.Context, t model.Test, questions []model.Question) (model.Test, error) {
	t.ID = newID()
	t.TotalQuestions = len(questions)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return t, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tests (id, org_id, name, created_by, total_questions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrgID, t.Name, t.CreatedBy, t.TotalQuestions, t.CreatedAt,
	)
	if err != nil {
		return t, fmt.Errorf("insert test: %w", err)
	}
	for _, q := range questions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (id, test_id, question_number, question_text,
			   answer_a, answer_b, answer_c, answer_d, correct_answer, section,
			   concept_tag, ai_confidence, has_graphic, answers_are_visual)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newID(), t.ID, q.QuestionNumber, q.Text,
			q.AnswerA, q.AnswerB, q.AnswerC, q.AnswerD, q.CorrectAnswer, q.Section,
			q.ConceptTag, q.AIConfidence, q.HasGraphic, q.AnswersAreVisual,
		)
		if err != nil {
			return t, conflict(fmt.Errorf("insert question %d: %w", q.QuestionNumber, err), "question number")
		}
	}
	if err := tx.Commit(); err != nil {
		return t, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// GetTest returns a test by ID.
func (s *Store) GetTest(ctx context.Context, id string) (model.Test, error) {
	var t model.Test
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, name, created_by, total_questions, created_at FROM tests WHERE id = ?`, id,
	).Scan(&t.ID, &t.OrgID, &t.Name, &t.CreatedBy, &t.TotalQuestions, &t.CreatedAt)
	if err != nil {
		return t, notFound(err, "test "+id)
	}
	return t, nil
}

// ListTests returns an organization's tests, newest first.
func (s *Store) ListTests(ctx context.Context, orgID string) ([]model.Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, name, created_by, total_questions, created_at
		 FROM tests WHERE org_id = ? ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.OrgID, &t.Name, &t.CreatedBy, &t.TotalQuestions, &t.CreatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

const questionColumns = `id, test_id, question_number, question_text, answer_a, answer_b, answer_c, answer_d,
	correct_answer, section, concept_tag, ai_confidence, has_graphic, answers_are_visual`

func scanQuestion(row scanner) (model.Question, error) {
	var q model.Question
	err := row.Scan(&q.ID, &q.TestID, &q.QuestionNumber, &q.Text, &q.AnswerA, &q.AnswerB, &q.AnswerC, &q.AnswerD,
		&q.CorrectAnswer, &q.Section, &q.ConceptTag, &q.AIConfidence, &q.HasGraphic, &q.AnswersAreVisual)
	return q, err
}

// ListQuestions returns a test's questions in question-number order.
func (s *Store) ListQuestions(ctx context.Context, testID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE test_id = ? ORDER BY question_number`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var qs []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(ctx context.Context, id string) (model.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if err != nil {
		return q, notFound(err, "question "+id)
	}
	return q, nil
}

// GetCounterpart returns the cached counterpart for a question, or nil.
func (s *Store) GetCounterpart(ctx context.Context, questionID string) (*model.Counterpart, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT counterpart_json FROM questions WHERE id = ?`, questionID,
	).Scan(&raw)
	if err != nil {
		return nil, notFound(err, "question "+questionID)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var c model.Counterpart
	if err := json.Unmarshal([]byte(raw.String), &c); err != nil {
		return nil, fmt.Errorf("decode counterpart: %w", err)
	}
	return &c, nil
}

// SaveCounterpart caches a generated counterpart on its question.
func (s *Store) SaveCounterpart(ctx context.Context, questionID string, c model.Counterpart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode counterpart: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET counterpart_json = ? WHERE id = ?`, string(data), questionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", questionID, model.ErrNotFound)
	}
	return nil
}

// errNoRows reports whether err is sql.ErrNoRows.
func errNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
