package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/satsession/internal/analysis"
	"github.com/pavelanni/satsession/internal/metrics"
	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

const (
	maxGuideQuestions   = 5
	maxPracticeConcepts = 5
	problemsPerConcept  = 3
)

// StartAnalysis resets the session's analysis job and runs the pipeline in
// the background.
func (s *Service) StartAnalysis(ctx context.Context, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != model.StatusAnalyzing && sess.Status != model.StatusLesson {
		return fmt.Errorf("analysis runs after the test ends: %w", model.ErrInvalid)
	}
	if !s.claimRun(sessionID) {
		return fmt.Errorf("analysis already running: %w", model.ErrConflict)
	}
	if err := s.tracker(sessionID).start(ctx); err != nil {
		s.releaseRun(sessionID)
		return err
	}
	s.goBackground("analysis", sessionID, func(ctx context.Context) error {
		defer s.releaseRun(sessionID)
		return s.runPipeline(ctx, sessionID)
	})
	return nil
}

// RunAnalysis runs the pipeline synchronously.
func (s *Service) RunAnalysis(ctx context.Context, sessionID string) error {
	if !s.claimRun(sessionID) {
		return fmt.Errorf("analysis already running: %w", model.ErrConflict)
	}
	defer s.releaseRun(sessionID)
	if err := s.tracker(sessionID).start(ctx); err != nil {
		return err
	}
	return s.runPipeline(ctx, sessionID)
}

func (s *Service) claimRun(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[sessionID] {
		return false
	}
	s.running[sessionID] = true
	return true
}

func (s *Service) releaseRun(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, sessionID)
}

func (s *Service) runPipeline(ctx context.Context, sessionID string) error {
	started := time.Now()
	t := s.tracker(sessionID)
	if err := s.analyze(ctx, t); err != nil {
		t.fail(ctx, err)
		metrics.RecordAnalysisRun("error", time.Since(started))
		return fmt.Errorf("analysis: %w", err)
	}
	metrics.RecordAnalysisRun("complete", time.Since(started))
	slog.Info("analysis complete", "session_id", sessionID, "duration", time.Since(started))
	return nil
}

func (s *Service) analyze(ctx context.Context, t *tracker) error {
	sess, err := s.store.GetSession(ctx, t.sessionID)
	if err != nil {
		return err
	}
	questions, err := s.store.ListQuestions(ctx, sess.TestID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return errors.New("no questions found")
	}
	roster, err := s.store.ListSessionStudents(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("list roster: %w", err)
	}
	if len(roster) == 0 {
		return errors.New("no students in session")
	}

	if err := t.advance(ctx, model.AnalysisGrading); err != nil {
		return err
	}
	answers, err := s.store.ListAnswers(ctx, store.MainAnswers, sess.ID, "")
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	byStudent := make(map[string][]model.Answer)
	for _, a := range answers {
		byStudent[a.StudentID] = append(byStudent[a.StudentID], a)
	}
	scores := make([]analysis.StudentScore, 0, len(roster))
	names := make(map[string]string, len(roster))
	for _, r := range roster {
		names[r.StudentID] = r.StudentName
		scores = append(scores, analysis.ScoreStudent(r.StudentID, questions, byStudent[r.StudentID]))
	}

	if err := t.advance(ctx, model.AnalysisAnalyzing); err != nil {
		return err
	}
	freqs := analysis.ConceptFrequencies(scores)
	gaps := analysis.AnalyzeGaps(scores, freqs)
	top := make([]string, 0, len(gaps.TopConcepts))
	for _, f := range gaps.TopConcepts {
		top = append(top, f.Concept)
	}
	slog.Info("gap analysis", "session_id", sess.ID, "students", len(gaps.Students), "top_concepts", top)

	if err := t.advance(ctx, model.AnalysisClustering); err != nil {
		return err
	}
	groups := analysis.ClusterStudents(scores, freqs, sess.TutorCount)
	if err := s.store.ClearLessonGroups(ctx, sess.ID); err != nil {
		return fmt.Errorf("clear stale groups: %w", err)
	}

	for _, g := range groups {
		members := make([]model.Member, 0, len(g.StudentIDs))
		for _, id := range g.StudentIDs {
			members = append(members, model.Member{StudentID: id, Name: names[id]})
		}
		lg, err := s.store.CreateLessonGroup(ctx, model.LessonGroup{
			SessionID:    sess.ID,
			GroupType:    g.GroupType,
			ConceptFocus: g.ConceptFocus,
			Members:      members,
			CreatedAt:    s.now(),
		})
		if err != nil {
			return fmt.Errorf("create group %s: %w", g.GroupType, err)
		}

		if err := t.advance(ctx, model.AnalysisGeneratingLessons); err != nil {
			return err
		}
		plan := model.LessonPlan{SessionID: sess.ID, GroupID: lg.ID, CreatedAt: s.now()}
		if g.GroupType != model.GroupIndependent {
			guide, err := s.tutorGuide(ctx, g, questions, members)
			if err != nil {
				return fmt.Errorf("tutor guide for %s: %w", g.ConceptFocus, err)
			}
			plan.TutorGuide = &guide
		} else {
			if err := t.advance(ctx, model.AnalysisGeneratingPractice); err != nil {
				return err
			}
			problems, err := s.practiceSet(ctx, g, scores, questions)
			if err != nil {
				return fmt.Errorf("practice problems: %w", err)
			}
			plan.PracticeProblems = problems
		}
		if _, err := s.store.SaveLessonPlan(ctx, plan); err != nil {
			return fmt.Errorf("save plan for %s: %w", g.GroupType, err)
		}
	}

	if err := t.advance(ctx, model.AnalysisComplete); err != nil {
		return err
	}

	// Move on to the lesson only if nobody advanced the session meanwhile.
	cur, err := s.store.GetSession(ctx, sess.ID)
	if err != nil {
		return err
	}
	if cur.Status == model.StatusAnalyzing {
		next := cur
		next.Status = model.StatusLesson
		err := s.store.SwapSessionState(ctx, next, model.StatusAnalyzing)
		switch {
		case err == nil:
			metrics.RecordPhaseTransition(string(model.StatusAnalyzing), string(model.StatusLesson))
			slog.Info("session advanced", "session_id", sess.ID, "from", model.StatusAnalyzing, "to", model.StatusLesson)
		case errors.Is(err, model.ErrConflict):
			slog.Info("session moved on during analysis", "session_id", sess.ID)
		default:
			return err
		}
	}
	return nil
}

func (s *Service) tutorGuide(ctx context.Context, g analysis.Group, questions []model.Question, members []model.Member) (string, error) {
	var concept []model.Question
	for _, q := range questions {
		if analysis.ConceptOf(q) == g.ConceptFocus {
			concept = append(concept, q)
			if len(concept) == maxGuideQuestions {
				break
			}
		}
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	started := time.Now()
	guide, err := s.gen.TutorGuide(ctx, g.ConceptFocus, concept, names)
	metrics.RecordContentRequest("tutor_guide", err, time.Since(started))
	return guide, err
}

// practiceSet builds practice for the independent group from the concepts
// its own members missed most.
func (s *Service) practiceSet(ctx context.Context, g analysis.Group, scores []analysis.StudentScore, questions []model.Question) ([]model.PracticeProblem, error) {
	inGroup := make(map[string]bool, len(g.StudentIDs))
	for _, id := range g.StudentIDs {
		inGroup[id] = true
	}
	var memberScores []analysis.StudentScore
	for _, sc := range scores {
		if inGroup[sc.StudentID] {
			memberScores = append(memberScores, sc)
		}
	}
	freqs := analysis.ConceptFrequencies(memberScores)
	if len(freqs) > maxPracticeConcepts {
		freqs = freqs[:maxPracticeConcepts]
	}

	problems := []model.PracticeProblem{}
	for _, f := range freqs {
		section := model.SectionMath
		var sample *string
		for _, q := range questions {
			if analysis.ConceptOf(q) == f.Concept {
				if q.Section != "" {
					section = q.Section
				}
				text := q.Text
				sample = &text
				break
			}
		}
		started := time.Now()
		batch, err := s.gen.PracticeProblems(ctx, f.Concept, section, sample, problemsPerConcept)
		metrics.RecordContentRequest("practice", err, time.Since(started))
		if err != nil {
			return nil, fmt.Errorf("concept %s: %w", f.Concept, err)
		}
		problems = append(problems, batch...)
	}
	return problems, nil
}
