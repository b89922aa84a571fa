package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/satsession/internal/metrics"
	"github.com/pavelanni/satsession/internal/model"
)

// Counterpart returns a reworded version of a question, generating and
// caching it on first use. Concurrent first requests share one generation.
func (s *Service) Counterpart(ctx context.Context, tutor *model.User, questionID string) (model.Counterpart, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return model.Counterpart{}, err
	}
	test, err := s.store.GetTest(ctx, q.TestID)
	if err != nil {
		return model.Counterpart{}, err
	}
	if test.OrgID != tutor.OrgID {
		return model.Counterpart{}, fmt.Errorf("question %s: %w", questionID, model.ErrNotFound)
	}

	if c, err := s.store.GetCounterpart(ctx, questionID); err != nil {
		return model.Counterpart{}, err
	} else if c != nil {
		return *c, nil
	}

	v, err, shared := s.counterparts.Do(questionID, func() (any, error) {
		if c, err := s.store.GetCounterpart(ctx, questionID); err != nil {
			return nil, err
		} else if c != nil {
			return *c, nil
		}
		started := time.Now()
		c, err := s.gen.Counterpart(ctx, q)
		metrics.RecordContentRequest("counterpart", err, time.Since(started))
		if err != nil {
			return nil, fmt.Errorf("generate counterpart: %w", err)
		}
		if err := s.store.SaveCounterpart(ctx, questionID, c); err != nil {
			slog.Warn("cache counterpart", "question_id", questionID, "error", err)
		}
		return c, nil
	})
	if err != nil {
		return model.Counterpart{}, err
	}
	if shared {
		slog.Debug("counterpart generation shared", "question_id", questionID)
	}
	return v.(model.Counterpart), nil
}

// Groups returns a session's lesson groups with members and plans.
func (s *Service) Groups(ctx context.Context, sessionID string) ([]model.LessonGroup, error) {
	groups, err := s.store.ListLessonGroups(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []model.LessonGroup{}
	}
	return groups, nil
}

// PracticeGroup names the group a student was placed in.
type PracticeGroup struct {
	Type    model.GroupType `json:"type"`
	Concept string          `json:"concept"`
}

// PracticeView is what a student works on during the lesson phase.
type PracticeView struct {
	Group     *PracticeGroup          `json:"group"`
	Problems  []model.PracticeProblem `json:"problems"`
	WithTutor bool                    `json:"withTutor"`
}

// Practice returns the student's group and, for the independent group, its
// practice problems. Tutor groups work with their tutor instead.
func (s *Service) Practice(ctx context.Context, who model.StudentIdentity) (PracticeView, error) {
	if _, err := s.memberSession(ctx, who); err != nil {
		return PracticeView{}, err
	}
	view := PracticeView{Problems: []model.PracticeProblem{}}
	g, err := s.store.GroupForStudent(ctx, who.SessionID, who.StudentID)
	if errors.Is(err, model.ErrNotFound) {
		return view, nil
	}
	if err != nil {
		return PracticeView{}, err
	}

	view.Group = &PracticeGroup{Type: g.GroupType, Concept: g.ConceptFocus}
	if g.GroupType != model.GroupIndependent {
		view.WithTutor = true
		return view, nil
	}
	if g.Plan != nil && g.Plan.PracticeProblems != nil {
		view.Problems = g.Plan.PracticeProblems
	}
	return view, nil
}
