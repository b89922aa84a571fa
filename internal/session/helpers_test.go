package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type guideCall struct {
	Concept   string
	Questions []string
	Names     []string
}

type practiceCall struct {
	Concept string
	Section model.Section
	Sample  string
	Count   int
}

type fakeGen struct {
	mu               sync.Mutex
	guideErr         error
	guides           []guideCall
	practice         []practiceCall
	counterpartCalls int
}

func (g *fakeGen) TutorGuide(_ context.Context, concept string, qs []model.Question, names []string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.guideErr != nil {
		return "", g.guideErr
	}
	call := guideCall{Concept: concept, Names: names}
	for _, q := range qs {
		call.Questions = append(call.Questions, q.ID)
	}
	g.guides = append(g.guides, call)
	return "Guide for " + concept, nil
}

func (g *fakeGen) PracticeProblems(_ context.Context, concept string, section model.Section, sample *string, count int) ([]model.PracticeProblem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	call := practiceCall{Concept: concept, Section: section, Count: count}
	if sample != nil {
		call.Sample = *sample
	}
	g.practice = append(g.practice, call)
	var out []model.PracticeProblem
	for i := 1; i <= count; i++ {
		out = append(out, model.PracticeProblem{
			ID: fmt.Sprintf("%s-%d", concept, i), Text: concept, CorrectAnswer: model.ChoiceA,
			Difficulty: i, ConceptTag: concept,
		})
	}
	return out, nil
}

func (g *fakeGen) Counterpart(_ context.Context, q model.Question) (model.Counterpart, error) {
	g.mu.Lock()
	g.counterpartCalls++
	g.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	return model.Counterpart{QuestionText: "Reworded: " + q.Text, AnswerA: "1", AnswerB: "2", AnswerC: "3", AnswerD: "4", CorrectAnswer: model.ChoiceC}, nil
}

type testEnv struct {
	ctx       context.Context
	store     *store.Store
	svc       *Service
	clock     *fakeClock
	gen       *fakeGen
	tutor     *model.User
	test      model.Test
	questions []model.Question
}

// newEnv builds a service over an in-memory store with n questions whose
// concepts cycle through concepts. Every question's correct answer is A.
func newEnv(t *testing.T, n int, concepts ...string) *testEnv {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	orgID, err := st.CreateOrganization(ctx, "Prep")
	require.NoError(t, err)
	tutorID, err := st.CreateUser(ctx, model.User{OrgID: orgID, Username: "tutor", PasswordHash: "x", Role: model.UserRoleTutor, Active: true})
	require.NoError(t, err)
	tutor, err := st.GetUserByID(ctx, tutorID)
	require.NoError(t, err)

	if len(concepts) == 0 {
		concepts = []string{"algebra"}
	}
	var qs []model.Question
	for i := 1; i <= n; i++ {
		section := model.SectionMath
		if i%2 == 0 {
			section = model.SectionReadingWriting
		}
		qs = append(qs, model.Question{
			QuestionNumber: i,
			Text:           fmt.Sprintf("Q%d", i),
			AnswerA:        "a",
			AnswerB:        "b",
			AnswerC:        "c",
			AnswerD:        "d",
			CorrectAnswer:  model.ChoiceA,
			Section:        section,
			ConceptTag:     concepts[(i-1)%len(concepts)],
		})
	}
	test, err := st.CreateTest(ctx, model.Test{OrgID: orgID, Name: "Practice", CreatedBy: tutorID}, qs)
	require.NoError(t, err)
	stored, err := st.ListQuestions(ctx, test.ID)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)}
	gen := &fakeGen{}
	svc := New(st, gen, Config{Now: clock.Now, RetestWorkers: 2})
	t.Cleanup(svc.Close)

	return &testEnv{ctx: ctx, store: st, svc: svc, clock: clock, gen: gen, tutor: tutor, test: test, questions: stored}
}

func (e *testEnv) newSession(t *testing.T, tutorCount int) model.Session {
	t.Helper()
	sess, err := e.svc.Create(e.ctx, e.tutor, CreateParams{TestID: e.test.ID, TutorCount: tutorCount})
	require.NoError(t, err)
	return sess
}

func (e *testEnv) join(t *testing.T, sess model.Session, name string) model.StudentIdentity {
	t.Helper()
	st, err := e.svc.AddStudent(e.ctx, e.tutor, name)
	require.NoError(t, err)
	_, err = e.svc.Join(e.ctx, sess.ID, sess.PIN, st.ID)
	require.NoError(t, err)
	return model.StudentIdentity{StudentID: st.ID, SessionID: sess.ID}
}

// answerAll answers every question, choosing B (wrong) for the listed
// question numbers and A otherwise.
func (e *testEnv) answerAll(t *testing.T, who model.StudentIdentity, wrong ...int) {
	t.Helper()
	miss := make(map[int]bool)
	for _, n := range wrong {
		miss[n] = true
	}
	for _, q := range e.questions {
		choice := model.ChoiceA
		if miss[q.QuestionNumber] {
			choice = model.ChoiceB
		}
		require.NoError(t, e.svc.RecordAnswer(e.ctx, who, AnswerInput{QuestionID: q.ID, SelectedAnswer: &choice}))
	}
}

func (e *testEnv) advance(t *testing.T, sessionID string, want model.SessionStatus) {
	t.Helper()
	sess, err := e.svc.Advance(e.ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, want, sess.Status)
	e.svc.Wait()
}

func (e *testEnv) status(t *testing.T, sessionID string) model.SessionStatus {
	t.Helper()
	sess, err := e.store.GetSession(e.ctx, sessionID)
	require.NoError(t, err)
	return sess.Status
}

var errGenerator = errors.New("generator timeout")
