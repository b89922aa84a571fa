package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/satsession/internal/analysis"
	"github.com/pavelanni/satsession/internal/metrics"
	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

// StartRetestPreparation checks that the session can take retests and
// then grades unanswered questions and assembles every student's retest in
// the background.
func (s *Service) StartRetestPreparation(ctx context.Context, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := checkRetestPhase(sess); err != nil {
		return err
	}
	s.goBackground("prepare-retest", sessionID, func(ctx context.Context) error {
		_, err := s.PrepareRetests(ctx, sessionID)
		return err
	})
	return nil
}

// checkRetestPhase rejects sessions whose main-test answers can still
// change. A retest is claimed once, so assembling it early would freeze a
// half-finished test.
func checkRetestPhase(sess model.Session) error {
	switch sess.Status {
	case model.StatusAnalyzing, model.StatusLesson, model.StatusRetest:
		return nil
	}
	return fmt.Errorf("retests are prepared after the test, session is %s: %w", sess.Status, model.ErrInvalid)
}

// PrepareRetests grades unanswered questions as incorrect and assembles a
// retest for each student on the roster. Students who already have one are
// skipped. It returns the number of retests created.
func (s *Service) PrepareRetests(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := checkRetestPhase(sess); err != nil {
		return 0, err
	}
	if err := s.autoGrade(ctx, sess); err != nil {
		return 0, err
	}
	questions, err := s.store.ListQuestions(ctx, sess.TestID)
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}
	roster, err := s.store.ListSessionStudents(ctx, sess.ID)
	if err != nil {
		return 0, fmt.Errorf("list roster: %w", err)
	}

	ids := make([]string, len(roster))
	for i, r := range roster {
		ids[i] = r.StudentID
	}
	created := make([]bool, len(ids))
	err = s.eachStudent(ctx, ids, func(ctx context.Context, i int, studentID string) error {
		ok, err := s.assemble(ctx, sess, studentID, questions)
		created[i] = ok
		return err
	})

	n := 0
	for _, ok := range created {
		if ok {
			n++
		}
	}
	slog.Info("retests prepared", "session_id", sess.ID, "created", n, "students", len(roster))
	return n, err
}

// eachStudent runs fn for every student with at most s.workers in flight.
// One student's failure does not cancel the others; all errors are joined.
func (s *Service) eachStudent(ctx context.Context, studentIDs []string, fn func(ctx context.Context, i int, studentID string) error) error {
	errs := make([]error, len(studentIDs))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, id := range studentIDs {
		g.Go(func() error {
			if err := fn(ctx, i, id); err != nil {
				errs[i] = fmt.Errorf("student %s: %w", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// AssembleRetest builds one student's retest. It is a no-op returning false
// when the student already has a retest.
func (s *Service) AssembleRetest(ctx context.Context, sessionID, studentID string) (bool, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if err := checkRetestPhase(sess); err != nil {
		return false, err
	}
	questions, err := s.store.ListQuestions(ctx, sess.TestID)
	if err != nil {
		return false, fmt.Errorf("list questions: %w", err)
	}
	return s.assemble(ctx, sess, studentID, questions)
}

// assemble plans and saves one retest. The count check is only a fast path
// that skips planning for students who already have rows; the claim taken
// by SaveRetest is what makes assembly happen once.
func (s *Service) assemble(ctx context.Context, sess model.Session, studentID string, questions []model.Question) (bool, error) {
	existing, err := s.store.CountRetestQuestions(ctx, sess.ID, studentID)
	if err != nil {
		return false, err
	}
	if existing > 0 {
		metrics.RecordRetestAssembly("skipped")
		return false, nil
	}

	missed, err := s.store.MissedQuestionIDs(ctx, sess.ID, studentID)
	if err != nil {
		metrics.RecordRetestAssembly("error")
		return false, fmt.Errorf("missed questions: %w", err)
	}
	plan := analysis.PlanRetest(questions, missed, sess.RetestQuestionCount, s.newRand(sess.ID, studentID))
	items := make([]model.RetestQuestion, 0, len(plan))
	for _, p := range plan {
		items = append(items, model.RetestQuestion{
			SessionID:  sess.ID,
			StudentID:  studentID,
			QuestionID: p.QuestionID,
			Source:     p.Source,
			Order:      p.Order,
		})
	}

	created, err := s.store.SaveRetest(ctx, sess.ID, studentID, items, s.now())
	if err != nil {
		metrics.RecordRetestAssembly("error")
		return false, err
	}
	if !created {
		metrics.RecordRetestAssembly("skipped")
		return false, nil
	}
	metrics.RecordRetestAssembly("created")
	slog.Debug("retest assembled", "session_id", sess.ID, "student_id", studentID, "questions", len(items), "missed", len(missed))
	return true, nil
}

// RetestItemView is a retest question as shown to the student. The correct
// answer is withheld.
type RetestItemView struct {
	ID             string              `json:"id"`
	QuestionNumber int                 `json:"questionNumber"`
	Text           string              `json:"questionText"`
	AnswerA        string              `json:"answerA"`
	AnswerB        string              `json:"answerB"`
	AnswerC        string              `json:"answerC"`
	AnswerD        string              `json:"answerD"`
	Section        model.Section       `json:"section"`
	HasGraphic     bool                `json:"hasGraphic"`
	SelectedAnswer *model.AnswerChoice `json:"selectedAnswer"`
	RetestOrder    int                 `json:"retestOrder"`
	Source         model.RetestSource  `json:"source"`
}

// RetestView is a student's retest with the time allowed for it.
type RetestView struct {
	Questions       []RetestItemView `json:"questions"`
	DurationMinutes int              `json:"duration"`
}

// Retest returns the student's retest in order with their saved answers.
func (s *Service) Retest(ctx context.Context, who model.StudentIdentity) (RetestView, error) {
	if _, err := s.memberSession(ctx, who); err != nil {
		return RetestView{}, err
	}
	items, err := s.store.ListRetestQuestions(ctx, who.SessionID, who.StudentID)
	if err != nil {
		return RetestView{}, err
	}
	view := RetestView{Questions: []RetestItemView{}}
	if len(items) == 0 {
		return view, nil
	}

	answers, err := s.store.ListAnswers(ctx, store.RetestAnswers, who.SessionID, who.StudentID)
	if err != nil {
		return RetestView{}, err
	}
	selected := make(map[string]*model.AnswerChoice, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedAnswer
	}

	var qs []model.Question
	for _, it := range items {
		q, err := s.store.GetQuestion(ctx, it.QuestionID)
		if err != nil {
			return RetestView{}, err
		}
		qs = append(qs, q)
		view.Questions = append(view.Questions, RetestItemView{
			ID:             q.ID,
			QuestionNumber: q.QuestionNumber,
			Text:           q.Text,
			AnswerA:        q.AnswerA,
			AnswerB:        q.AnswerB,
			AnswerC:        q.AnswerC,
			AnswerD:        q.AnswerD,
			Section:        q.Section,
			HasGraphic:     q.HasGraphic,
			SelectedAnswer: selected[q.ID],
			RetestOrder:    it.Order,
			Source:         it.Source,
		})
	}
	view.DurationMinutes = analysis.RetestDuration(analysis.SectionCounts(qs))
	return view, nil
}
