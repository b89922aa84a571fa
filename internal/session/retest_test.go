package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

func TestRetestAssemblyOnAdvance(t *testing.T) {
	e := newEnv(t, 50, "algebra", "geometry", "grammar", "vocabulary", "statistics")
	sess := e.newSession(t, 1)
	ana := e.join(t, sess, "Ana")
	e.advance(t, sess.ID, model.StatusTesting)
	e.answerAll(t, ana, 7, 3, 12, 1, 25)
	e.advance(t, sess.ID, model.StatusAnalyzing)
	e.advance(t, sess.ID, model.StatusRetest)

	items, err := e.store.ListRetestQuestions(e.ctx, sess.ID, ana.StudentID)
	require.NoError(t, err)
	require.Len(t, items, 20)

	number := make(map[string]int, len(e.questions))
	for _, q := range e.questions {
		number[q.ID] = q.QuestionNumber
	}
	seen := make(map[string]bool)
	for i, it := range items {
		assert.Equal(t, i+1, it.Order)
		assert.False(t, seen[it.QuestionID], "question %d appears twice", number[it.QuestionID])
		seen[it.QuestionID] = true
		if i < 5 {
			assert.Equal(t, model.SourceMissed, it.Source)
		} else {
			assert.Equal(t, model.SourcePadding, it.Source)
		}
	}
	var firstFive []int
	for _, it := range items[:5] {
		firstFive = append(firstFive, number[it.QuestionID])
	}
	assert.Equal(t, []int{1, 3, 7, 12, 25}, firstFive, "missed questions come in test order")
}

func TestPrepareRetestsIsIdempotent(t *testing.T) {
	e := newEnv(t, 30, "algebra", "geometry")
	sess := e.newSession(t, 1)
	var students []model.StudentIdentity
	for i := range 5 {
		students = append(students, e.join(t, sess, fmt.Sprintf("Student %d", i)))
	}
	e.advance(t, sess.ID, model.StatusTesting)
	for i, who := range students {
		e.answerAll(t, who, i+1, i+2)
	}
	e.advance(t, sess.ID, model.StatusAnalyzing)
	e.advance(t, sess.ID, model.StatusRetest)

	counts := func() []int {
		var out []int
		for _, who := range students {
			n, err := e.store.CountRetestQuestions(e.ctx, sess.ID, who.StudentID)
			require.NoError(t, err)
			out = append(out, n)
		}
		return out
	}
	before := counts()
	for _, n := range before {
		assert.Equal(t, 20, n)
	}

	created, err := e.svc.PrepareRetests(e.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, created, "second preparation creates nothing")
	assert.Equal(t, before, counts())

	ok, err := e.svc.AssembleRetest(e.ctx, sess.ID, students[0].StudentID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, counts())
}

func TestPrepareRetestsRejectedDuringTest(t *testing.T) {
	e := newEnv(t, 10)
	sess := e.newSession(t, 1)
	ana := e.join(t, sess, "Ana")

	_, err := e.svc.PrepareRetests(e.ctx, sess.ID)
	assert.ErrorIs(t, err, model.ErrInvalid, "lobby")

	e.advance(t, sess.ID, model.StatusTesting)
	_, err = e.svc.PrepareRetests(e.ctx, sess.ID)
	assert.ErrorIs(t, err, model.ErrInvalid, "testing")
	_, err = e.svc.AssembleRetest(e.ctx, sess.ID, ana.StudentID)
	assert.ErrorIs(t, err, model.ErrInvalid)
	assert.ErrorIs(t, e.svc.StartRetestPreparation(e.ctx, sess.ID), model.ErrInvalid)
	e.svc.Wait()

	n, err := e.store.CountRetestQuestions(e.ctx, sess.ID, ana.StudentID)
	require.NoError(t, err)
	assert.Zero(t, n)
	answers, err := e.store.ListAnswers(e.ctx, store.MainAnswers, sess.ID, ana.StudentID)
	require.NoError(t, err)
	assert.Empty(t, answers, "unanswered questions are not graded early")

	// The real retest reflects the answers given after the rejected call.
	e.answerAll(t, ana, 4)
	e.advance(t, sess.ID, model.StatusAnalyzing)
	e.advance(t, sess.ID, model.StatusRetest)

	items, err := e.store.ListRetestQuestions(e.ctx, sess.ID, ana.StudentID)
	require.NoError(t, err)
	require.Len(t, items, 10)
	assert.Equal(t, e.questions[3].ID, items[0].QuestionID)
	assert.Equal(t, model.SourceMissed, items[0].Source)
	for _, it := range items[1:] {
		assert.Equal(t, model.SourcePadding, it.Source)
	}
}

func TestEachStudentKeepsGoingAfterFailure(t *testing.T) {
	e := newEnv(t, 1)
	errBroken := errors.New("broken")

	var mu sync.Mutex
	var visited []string
	err := e.svc.eachStudent(e.ctx, []string{"s1", "s2", "s3", "s4"}, func(ctx context.Context, _ int, id string) error {
		mu.Lock()
		visited = append(visited, id)
		mu.Unlock()
		if id == "s2" {
			return errBroken
		}
		return ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBroken)
	assert.Contains(t, err.Error(), "student s2")
	assert.NotContains(t, err.Error(), "canceled")
	assert.ElementsMatch(t, []string{"s1", "s2", "s3", "s4"}, visited)
}

func TestRetestUsesUnansweredAsMissed(t *testing.T) {
	e := newEnv(t, 10)
	sess := e.newSession(t, 1)
	ana := e.join(t, sess, "Ana")
	e.advance(t, sess.ID, model.StatusTesting)

	a := model.ChoiceA
	for _, q := range e.questions[:8] {
		require.NoError(t, e.svc.RecordAnswer(e.ctx, ana, AnswerInput{QuestionID: q.ID, SelectedAnswer: &a}))
	}
	e.advance(t, sess.ID, model.StatusAnalyzing)
	e.advance(t, sess.ID, model.StatusRetest)

	items, err := e.store.ListRetestQuestions(e.ctx, sess.ID, ana.StudentID)
	require.NoError(t, err)
	require.Len(t, items, 10, "target is capped by the question pool")
	assert.Equal(t, e.questions[8].ID, items[0].QuestionID)
	assert.Equal(t, e.questions[9].ID, items[1].QuestionID)
	assert.Equal(t, model.SourceMissed, items[1].Source)
	assert.Equal(t, model.SourcePadding, items[2].Source)
}

func TestRetestView(t *testing.T) {
	e := newEnv(t, 6)
	sess := e.newSession(t, 1)
	ana := e.join(t, sess, "Ana")

	view, err := e.svc.Retest(e.ctx, ana)
	require.NoError(t, err)
	assert.Empty(t, view.Questions)
	assert.Equal(t, 0, view.DurationMinutes)

	e.advance(t, sess.ID, model.StatusTesting)
	e.answerAll(t, ana, 2)
	e.advance(t, sess.ID, model.StatusAnalyzing)
	e.advance(t, sess.ID, model.StatusRetest)

	b := model.ChoiceB
	require.NoError(t, e.svc.RecordRetestAnswer(e.ctx, ana, AnswerInput{QuestionID: e.questions[1].ID, SelectedAnswer: &b}))

	view, err = e.svc.Retest(e.ctx, ana)
	require.NoError(t, err)
	require.Len(t, view.Questions, 6)
	first := view.Questions[0]
	assert.Equal(t, e.questions[1].ID, first.ID)
	assert.Equal(t, 1, first.RetestOrder)
	assert.Equal(t, model.SourceMissed, first.Source)
	require.NotNil(t, first.SelectedAnswer)
	assert.Equal(t, model.ChoiceB, *first.SelectedAnswer)
	assert.Nil(t, view.Questions[1].SelectedAnswer)
	// Three math and three reading/writing questions.
	assert.Equal(t, 9, view.DurationMinutes)
}
