package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pavelanni/satsession/internal/analysis"
	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

// Report returns the student's progress report, building and caching it on
// first request.
func (s *Service) Report(ctx context.Context, who model.StudentIdentity) (model.ReportSummary, error) {
	if _, err := s.memberSession(ctx, who); err != nil {
		return model.ReportSummary{}, err
	}
	r, err := s.store.GetReport(ctx, who.SessionID, who.StudentID)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return r, err
	}

	r, err = s.BuildReport(ctx, who.SessionID, who.StudentID)
	if err != nil {
		return r, err
	}
	if err := s.store.SaveReport(ctx, who.SessionID, who.StudentID, r, s.now()); err != nil {
		return r, err
	}
	return r, nil
}

// BuildReport compares a student's main test with their retest.
func (s *Service) BuildReport(ctx context.Context, sessionID, studentID string) (model.ReportSummary, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.ReportSummary{}, err
	}
	ss, err := s.store.GetSessionStudent(ctx, sessionID, studentID)
	if err != nil {
		return model.ReportSummary{}, err
	}
	questions, err := s.store.ListQuestions(ctx, sess.TestID)
	if err != nil {
		return model.ReportSummary{}, fmt.Errorf("list questions: %w", err)
	}
	concepts := make(map[string]string, len(questions))
	for _, q := range questions {
		concepts[q.ID] = analysis.ConceptOf(q)
	}
	mainAnswers, err := s.store.ListAnswers(ctx, store.MainAnswers, sessionID, studentID)
	if err != nil {
		return model.ReportSummary{}, err
	}
	retest, err := s.store.ListAnswers(ctx, store.RetestAnswers, sessionID, studentID)
	if err != nil {
		return model.ReportSummary{}, err
	}

	r := model.ReportSummary{
		StudentName:       ss.StudentName,
		TestScore:         scoreLine(mainAnswers),
		RetestScore:       scoreLine(retest),
		PracticeCompleted: true,
		GroupType:         model.GroupIndependent,
		MissedConcepts:    []model.ConceptProgress{},
	}
	r.Improvement = r.RetestScore.Percentage - r.TestScore.Percentage

	index := make(map[string]int)
	for _, a := range mainAnswers {
		if isCorrect(a) {
			continue
		}
		c := concepts[a.QuestionID]
		if c == "" {
			c = analysis.UnknownConcept
		}
		i, ok := index[c]
		if !ok {
			i = len(r.MissedConcepts)
			index[c] = i
			r.MissedConcepts = append(r.MissedConcepts, model.ConceptProgress{Concept: c})
		}
		r.MissedConcepts[i].MissedCount++
	}
	for _, a := range retest {
		if !isCorrect(a) {
			continue
		}
		if i, ok := index[concepts[a.QuestionID]]; ok {
			r.MissedConcepts[i].RetestCorrect++
		}
	}
	slices.SortStableFunc(r.MissedConcepts, func(a, b model.ConceptProgress) int {
		return cmp.Compare(b.MissedCount, a.MissedCount)
	})

	g, err := s.store.GroupForStudent(ctx, sessionID, studentID)
	switch {
	case err == nil:
		r.GroupType = g.GroupType
	case !errors.Is(err, model.ErrNotFound):
		return r, err
	}
	return r, nil
}

func isCorrect(a model.Answer) bool {
	return a.IsCorrect != nil && *a.IsCorrect
}

func scoreLine(answers []model.Answer) model.ScoreLine {
	l := model.ScoreLine{Total: len(answers)}
	for _, a := range answers {
		if isCorrect(a) {
			l.Correct++
		}
	}
	l.Percentage = analysis.Percent(l.Correct, l.Total)
	return l
}

// Export collects reports for every student on a session's roster,
// building any that are missing.
func (s *Service) Export(ctx context.Context, sessionID string) (model.SessionExport, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.SessionExport{}, err
	}
	test, err := s.store.GetTest(ctx, sess.TestID)
	if err != nil {
		return model.SessionExport{}, err
	}
	roster, err := s.store.ListSessionStudents(ctx, sessionID)
	if err != nil {
		return model.SessionExport{}, err
	}
	out := model.SessionExport{
		SessionID:  sess.ID,
		TestName:   test.Name,
		Status:     sess.Status,
		ExportedAt: s.now().UTC().Truncate(time.Second),
		Reports:    []model.StudentReport{},
	}
	for _, r := range roster {
		rep, err := s.Report(ctx, model.StudentIdentity{StudentID: r.StudentID, SessionID: sessionID})
		if err != nil {
			return out, fmt.Errorf("report for %s: %w", r.StudentID, err)
		}
		out.Reports = append(out.Reports, model.StudentReport{StudentID: r.StudentID, Report: rep})
	}
	return out, nil
}
