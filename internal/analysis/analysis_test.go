package analysis

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/satsession/internal/model"
)

func question(id, concept string, section model.Section) model.Question {
	return model.Question{ID: id, ConceptTag: concept, Section: section, CorrectAnswer: model.ChoiceA}
}

func graded(questionID string, correct bool) model.Answer {
	c := correct
	choice := model.ChoiceB
	if correct {
		choice = model.ChoiceA
	}
	return model.Answer{QuestionID: questionID, SelectedAnswer: &choice, IsCorrect: &c}
}

func TestScoreStudent(t *testing.T) {
	questions := []model.Question{
		question("q1", "linear equations", model.SectionMath),
		question("q2", "inference", model.SectionReadingWriting),
		question("q3", "", model.SectionMath),
		question("q4", "linear equations", model.SectionMath),
	}

	t.Run("mixed answers", func(t *testing.T) {
		answers := []model.Answer{graded("q1", true), graded("q2", false), {QuestionID: "q4"}}
		s := ScoreStudent("s1", questions, answers)

		assert.Equal(t, 4, s.TotalQuestions)
		assert.Equal(t, 1, s.CorrectCount)
		assert.Equal(t, 3, s.IncorrectCount)
		assert.Equal(t, 1, s.Unanswered)
		assert.Equal(t, 25, s.Percentage)
		assert.Equal(t, []string{"q2", "q3", "q4"}, s.MissedQuestionIDs)
		assert.Equal(t, []ConceptMisses{
			{Concept: "inference", QuestionIDs: []string{"q2"}},
			{Concept: UnknownConcept, QuestionIDs: []string{"q3"}},
			{Concept: "linear equations", QuestionIDs: []string{"q4"}},
		}, s.MissedByConcept)
	})

	t.Run("no questions", func(t *testing.T) {
		s := ScoreStudent("s1", nil, nil)
		assert.Equal(t, 0, s.Percentage)
		assert.Equal(t, 0, s.Unanswered)
	})

	t.Run("more answers than questions", func(t *testing.T) {
		answers := []model.Answer{graded("q1", true), graded("q2", true), graded("q3", true), graded("q4", true), graded("x", true)}
		s := ScoreStudent("s1", questions, answers)
		assert.Equal(t, 0, s.Unanswered)
		assert.Equal(t, 100, s.Percentage)
	})

	t.Run("rounds percentage", func(t *testing.T) {
		three := questions[:3]
		s := ScoreStudent("s1", three, []model.Answer{graded("q1", true), graded("q2", true)})
		assert.Equal(t, 67, s.Percentage)
	})

	t.Run("deterministic", func(t *testing.T) {
		answers := []model.Answer{graded("q2", true), graded("q1", false)}
		first := ScoreStudent("s1", questions, answers)
		for range 10 {
			assert.Equal(t, first, ScoreStudent("s1", questions, answers))
		}
	})
}

func TestConceptFrequenciesRanking(t *testing.T) {
	scores := []StudentScore{
		{StudentID: "s1", MissedByConcept: []ConceptMisses{
			{Concept: "inference", QuestionIDs: []string{"q9"}},
			{Concept: "systems of equations", QuestionIDs: []string{"q1", "q2"}},
		}},
		{StudentID: "s2", MissedByConcept: []ConceptMisses{
			{Concept: "systems of equations", QuestionIDs: []string{"q1", "q3"}},
		}},
		{StudentID: "s3", MissedByConcept: []ConceptMisses{
			{Concept: "systems of equations", QuestionIDs: []string{"q2"}},
		}},
	}

	freqs := ConceptFrequencies(scores)
	require.Len(t, freqs, 2)
	assert.Equal(t, "systems of equations", freqs[0].Concept)
	assert.Equal(t, 5, freqs[0].Count)
	assert.Equal(t, []string{"s1", "s2", "s3"}, freqs[0].StudentIDs)
	assert.Equal(t, []string{"q1", "q2", "q3"}, freqs[0].QuestionIDs)
	assert.Equal(t, "inference", freqs[1].Concept)
	assert.Equal(t, 1, freqs[1].Count)
}

func TestConceptFrequenciesTiesKeepFirstSeen(t *testing.T) {
	scores := []StudentScore{
		{StudentID: "s1", MissedByConcept: []ConceptMisses{
			{Concept: "b", QuestionIDs: []string{"q1"}},
			{Concept: "a", QuestionIDs: []string{"q2"}},
			{Concept: "c", QuestionIDs: []string{"q3"}},
		}},
	}
	freqs := ConceptFrequencies(scores)
	require.Len(t, freqs, 3)
	assert.Equal(t, "b", freqs[0].Concept)
	assert.Equal(t, "a", freqs[1].Concept)
	assert.Equal(t, "c", freqs[2].Concept)
}

func TestAnalyzeGaps(t *testing.T) {
	var freqs []ConceptFrequency
	for i := range 12 {
		freqs = append(freqs, ConceptFrequency{Concept: fmt.Sprintf("c%d", i), Count: 12 - i})
	}
	scores := []StudentScore{{StudentID: "s1", Percentage: 40, MissedByConcept: []ConceptMisses{{Concept: "c1"}}}}

	ga := AnalyzeGaps(scores, freqs)
	assert.Len(t, ga.TopConcepts, 10)
	require.Len(t, ga.Students, 1)
	assert.Equal(t, []string{"c1"}, ga.Students[0].WeakAreas)
	assert.Equal(t, 40, ga.Students[0].Score)
}

func membersOf(groups []Group) map[string]int {
	seen := make(map[string]int)
	for _, g := range groups {
		for _, id := range g.StudentIDs {
			seen[id]++
		}
	}
	return seen
}

func TestClusterStudents(t *testing.T) {
	scores := []StudentScore{
		{StudentID: "s1", MissedByConcept: []ConceptMisses{{Concept: "quadratics", QuestionIDs: []string{"q1", "q2"}}, {Concept: "inference", QuestionIDs: []string{"q5"}}}},
		{StudentID: "s2", MissedByConcept: []ConceptMisses{{Concept: "quadratics", QuestionIDs: []string{"q1"}}}},
		{StudentID: "s3", MissedByConcept: []ConceptMisses{{Concept: "inference", QuestionIDs: []string{"q5", "q6"}}}},
		{StudentID: "s4"},
	}
	freqs := ConceptFrequencies(scores)

	tests := []struct {
		name       string
		tutorCount int
		want       []Group
	}{
		{
			name:       "one tutor",
			tutorCount: 1,
			want: []Group{
				{GroupType: model.GroupTutor1, ConceptFocus: "quadratics", StudentIDs: []string{"s1", "s2"}},
				{GroupType: model.GroupIndependent, ConceptFocus: MixedFocus, StudentIDs: []string{"s3", "s4"}},
			},
		},
		{
			name:       "first concept wins",
			tutorCount: 2,
			want: []Group{
				{GroupType: model.GroupTutor1, ConceptFocus: "quadratics", StudentIDs: []string{"s1", "s2"}},
				{GroupType: model.GroupTutor2, ConceptFocus: "inference", StudentIDs: []string{"s3"}},
				{GroupType: model.GroupIndependent, ConceptFocus: MixedFocus, StudentIDs: []string{"s4"}},
			},
		},
		{
			name:       "more tutors than concepts",
			tutorCount: 3,
			want: []Group{
				{GroupType: model.GroupTutor1, ConceptFocus: "quadratics", StudentIDs: []string{"s1", "s2"}},
				{GroupType: model.GroupTutor2, ConceptFocus: "inference", StudentIDs: []string{"s3"}},
				{GroupType: model.GroupIndependent, ConceptFocus: MixedFocus, StudentIDs: []string{"s4"}},
			},
		},
		{
			name:       "tutor count clamped",
			tutorCount: 0,
			want: []Group{
				{GroupType: model.GroupTutor1, ConceptFocus: "quadratics", StudentIDs: []string{"s1", "s2"}},
				{GroupType: model.GroupIndependent, ConceptFocus: MixedFocus, StudentIDs: []string{"s3", "s4"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := ClusterStudents(scores, freqs, tt.tutorCount)
			assert.Equal(t, tt.want, groups)

			seen := membersOf(groups)
			assert.Len(t, seen, len(scores))
			for id, n := range seen {
				assert.Equal(t, 1, n, "student %s placed %d times", id, n)
			}
		})
	}
}

func TestClusterStudentsSkipsEmptyTutorGroup(t *testing.T) {
	// Everyone who missed "b" already sits in the "a" group.
	freqs := []ConceptFrequency{
		{Concept: "a", Count: 3, StudentIDs: []string{"s1", "s2"}},
		{Concept: "b", Count: 2, StudentIDs: []string{"s1"}},
		{Concept: "c", Count: 1, StudentIDs: []string{"s3"}},
	}
	scores := []StudentScore{{StudentID: "s1"}, {StudentID: "s2"}, {StudentID: "s3"}}

	groups := ClusterStudents(scores, freqs, 3)
	require.Len(t, groups, 2)
	assert.Equal(t, model.GroupTutor1, groups[0].GroupType)
	assert.Equal(t, model.GroupTutor3, groups[1].GroupType)
	assert.Equal(t, []string{"s3"}, groups[1].StudentIDs)
}

func TestClusterStudentsFallback(t *testing.T) {
	scores := []StudentScore{{StudentID: "s1"}, {StudentID: "s2"}}
	groups := ClusterStudents(scores, nil, 2)
	require.Len(t, groups, 1)
	assert.Equal(t, model.GroupIndependent, groups[0].GroupType)
	assert.Equal(t, MixedFocus, groups[0].ConceptFocus)
	assert.Equal(t, []string{"s1", "s2"}, groups[0].StudentIDs)

	groups = ClusterStudents(nil, nil, 2)
	require.Len(t, groups, 1)
	assert.Equal(t, GeneralReviewFocus, groups[0].ConceptFocus)
}

func TestClusterPartitionRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	concepts := []string{"a", "b", "c", "d", "e"}
	for iter := range 200 {
		var scores []StudentScore
		nStudents := rng.IntN(12) + 1
		for s := range nStudents {
			score := StudentScore{StudentID: fmt.Sprintf("s%d", s)}
			for _, c := range concepts {
				if rng.IntN(3) == 0 {
					score.MissedByConcept = append(score.MissedByConcept, ConceptMisses{
						Concept: c, QuestionIDs: []string{fmt.Sprintf("%s-%d", c, rng.IntN(4))},
					})
				}
			}
			scores = append(scores, score)
		}
		groups := ClusterStudents(scores, ConceptFrequencies(scores), rng.IntN(3)+1)

		seen := membersOf(groups)
		require.Len(t, seen, nStudents, "iteration %d", iter)
		for id, n := range seen {
			require.Equal(t, 1, n, "iteration %d student %s", iter, id)
		}
	}
}

func TestPlanRetest(t *testing.T) {
	var questions []model.Question
	for i := 1; i <= 50; i++ {
		concept := "algebra"
		if i%2 == 0 {
			concept = "geometry"
		}
		questions = append(questions, question(fmt.Sprintf("q%02d", i), concept, model.SectionMath))
	}
	missed := []string{"q03", "q07", "q11", "q15", "q19"}

	plan := PlanRetest(questions, missed, 20, rand.New(rand.NewPCG(1, 2)))
	require.Len(t, plan, 20)

	seen := make(map[string]bool)
	for i, item := range plan {
		assert.Equal(t, i+1, item.Order)
		assert.False(t, seen[item.QuestionID], "duplicate %s", item.QuestionID)
		seen[item.QuestionID] = true
		if i < len(missed) {
			assert.Equal(t, model.SourceMissed, item.Source)
			assert.Equal(t, missed[i], item.QuestionID)
		} else {
			assert.Equal(t, model.SourcePadding, item.Source)
		}
	}
	// All missed questions are algebra, so padding stays in algebra.
	for _, item := range plan[len(missed):] {
		n := 0
		fmt.Sscanf(item.QuestionID, "q%d", &n)
		assert.Equal(t, 1, n%2, "padding %s should be same-concept", item.QuestionID)
	}
}

func TestPlanRetestTiers(t *testing.T) {
	questions := []model.Question{
		question("q1", "a", model.SectionMath),
		question("q2", "b", model.SectionMath),
		question("q3", "a", model.SectionMath),
		question("q4", "c", model.SectionMath),
		question("q5", "", model.SectionMath),
	}

	t.Run("random tier fills the rest", func(t *testing.T) {
		plan := PlanRetest(questions, []string{"q1"}, 5, nil)
		ids := make([]string, len(plan))
		for i, p := range plan {
			ids[i] = p.QuestionID
		}
		assert.Equal(t, []string{"q1", "q3", "q2", "q4", "q5"}, ids)
	})

	t.Run("sources exhausted", func(t *testing.T) {
		plan := PlanRetest(questions, []string{"q1"}, 20, rand.New(rand.NewPCG(3, 4)))
		assert.Len(t, plan, len(questions))
	})

	t.Run("truncates missed", func(t *testing.T) {
		plan := PlanRetest(questions, []string{"q1", "q2", "q3", "q4"}, 2, nil)
		require.Len(t, plan, 2)
		assert.Equal(t, "q1", plan[0].QuestionID)
		assert.Equal(t, "q2", plan[1].QuestionID)
	})

	t.Run("ignores unknown and duplicate ids", func(t *testing.T) {
		plan := PlanRetest(questions, []string{"zz", "q2", "q2"}, 1, nil)
		require.Len(t, plan, 1)
		assert.Equal(t, "q2", plan[0].QuestionID)
	})

	t.Run("zero target", func(t *testing.T) {
		assert.Empty(t, PlanRetest(questions, []string{"q1"}, 0, nil))
	})
}

func TestRetestDuration(t *testing.T) {
	tests := []struct {
		math, rw, want int
	}{
		{10, 10, 28},
		{0, 0, 0},
		{1, 0, 2},
		{0, 1, 2},
		{0, 4, 5},
		{20, 0, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetestDuration(tt.math, tt.rw), "math=%d rw=%d", tt.math, tt.rw)
	}
}

func TestSectionCounts(t *testing.T) {
	qs := []model.Question{
		question("1", "", model.SectionMath),
		question("2", "", model.SectionReadingWriting),
		question("3", "", ""),
	}
	m, rw := SectionCounts(qs)
	assert.Equal(t, 1, m)
	assert.Equal(t, 2, rw)
}

func TestRemainingTime(t *testing.T) {
	t0 := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)

	t.Run("pause is excluded from countdown", func(t *testing.T) {
		pausedAt := t0.Add(10 * time.Minute)
		resumed := pausedAt.Add(5 * time.Minute)
		totalPaused := resumed.Sub(pausedAt)
		assert.Equal(t, 5*time.Minute, totalPaused)

		// 15 wall minutes with 5 paused leaves 10 minutes used.
		got := RemainingTime(t0, 180, totalPaused, nil, resumed)
		assert.Equal(t, 170*time.Minute, got)

		// Same remaining time as at the moment of pausing.
		assert.Equal(t, RemainingTime(t0, 180, 0, &pausedAt, pausedAt), got)
	})

	t.Run("clock frozen while paused", func(t *testing.T) {
		pausedAt := t0.Add(10 * time.Minute)
		atPause := RemainingTime(t0, 180, 0, &pausedAt, pausedAt)
		later := RemainingTime(t0, 180, 0, &pausedAt, pausedAt.Add(30*time.Minute))
		assert.Equal(t, 170*time.Minute, atPause)
		assert.Equal(t, atPause, later)
	})

	t.Run("never negative", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), RemainingTime(t0, 10, 0, nil, t0.Add(time.Hour)))
	})
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "2:05", FormatClock(125*time.Second))
	assert.Equal(t, "1:00:09", FormatClock(time.Hour+9*time.Second))
	assert.Equal(t, "0:00", FormatClock(0))
}
