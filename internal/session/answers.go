package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

// AnswerInput is a student's choice for one question.
type AnswerInput struct {
	QuestionID     string              `json:"questionId" validate:"required"`
	SelectedAnswer *model.AnswerChoice `json:"selectedAnswer" validate:"required,oneof=A B C D"`
}

// RecordAnswer saves a main-test answer while the test is running or paused.
func (s *Service) RecordAnswer(ctx context.Context, who model.StudentIdentity, in AnswerInput) error {
	sess, err := s.memberSession(ctx, who)
	if err != nil {
		return err
	}
	if sess.Status != model.StatusTesting && sess.Status != model.StatusPaused {
		return fmt.Errorf("test not active: %w", model.ErrInvalid)
	}
	return s.saveAnswer(ctx, store.MainAnswers, sess, who, in)
}

// RecordRetestAnswer saves a retest answer while the session is in retest.
func (s *Service) RecordRetestAnswer(ctx context.Context, who model.StudentIdentity, in AnswerInput) error {
	sess, err := s.memberSession(ctx, who)
	if err != nil {
		return err
	}
	if sess.Status != model.StatusRetest {
		return fmt.Errorf("retest not active: %w", model.ErrInvalid)
	}
	return s.saveAnswer(ctx, store.RetestAnswers, sess, who, in)
}

func (s *Service) saveAnswer(ctx context.Context, table store.AnswerTable, sess model.Session, who model.StudentIdentity, in AnswerInput) error {
	if in.SelectedAnswer == nil || !in.SelectedAnswer.Valid() {
		return fmt.Errorf("answer must be A-D: %w", model.ErrInvalid)
	}
	q, err := s.store.GetQuestion(ctx, in.QuestionID)
	if err != nil {
		return err
	}
	if q.TestID != sess.TestID {
		return fmt.Errorf("question %s: %w", in.QuestionID, model.ErrNotFound)
	}

	correct := *in.SelectedAnswer == q.CorrectAnswer
	return s.store.UpsertAnswer(ctx, table, model.Answer{
		SessionID:      who.SessionID,
		StudentID:      who.StudentID,
		QuestionID:     q.ID,
		SelectedAnswer: in.SelectedAnswer,
		IsCorrect:      &correct,
		AnsweredAt:     s.now(),
	})
}

// SubmitTest records unanswered questions as incorrect and marks the
// student's test as submitted.
func (s *Service) SubmitTest(ctx context.Context, who model.StudentIdentity) error {
	sess, err := s.memberSession(ctx, who)
	if err != nil {
		return err
	}
	if _, err := s.fillUnanswered(ctx, sess, who.StudentID); err != nil {
		return err
	}
	if err := s.store.MarkTestSubmitted(ctx, sess.ID, who.StudentID, s.now()); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	slog.Info("test submitted", "session_id", sess.ID, "student_id", who.StudentID)
	return nil
}

// SubmitRetest acknowledges a finished retest. Answers are saved as they
// are given, so nothing is written.
func (s *Service) SubmitRetest(ctx context.Context, who model.StudentIdentity) error {
	_, err := s.memberSession(ctx, who)
	return err
}

// autoGrade fills unanswered questions for every student on the roster.
func (s *Service) autoGrade(ctx context.Context, sess model.Session) error {
	roster, err := s.store.ListSessionStudents(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("list roster: %w", err)
	}
	for _, r := range roster {
		n, err := s.fillUnanswered(ctx, sess, r.StudentID)
		if err != nil {
			return fmt.Errorf("grade student %s: %w", r.StudentID, err)
		}
		if n > 0 {
			slog.Debug("auto-graded unanswered questions", "session_id", sess.ID, "student_id", r.StudentID, "count", n)
		}
	}
	return nil
}

func (s *Service) fillUnanswered(ctx context.Context, sess model.Session, studentID string) (int, error) {
	questions, err := s.store.ListQuestions(ctx, sess.TestID)
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	n, err := s.store.FillUnanswered(ctx, sess.ID, studentID, ids, s.now())
	if err != nil {
		return 0, fmt.Errorf("fill unanswered: %w", err)
	}
	return n, nil
}

// memberSession loads the session of a student token and checks membership.
func (s *Service) memberSession(ctx context.Context, who model.StudentIdentity) (model.Session, error) {
	sess, err := s.store.GetSession(ctx, who.SessionID)
	if err != nil {
		return sess, err
	}
	if _, err := s.store.GetSessionStudent(ctx, who.SessionID, who.StudentID); errors.Is(err, model.ErrNotFound) {
		return sess, fmt.Errorf("student not in session: %w", model.ErrForbidden)
	} else if err != nil {
		return sess, err
	}
	return sess, nil
}
