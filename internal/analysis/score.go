// Package analysis holds the pure decision logic of a session: scoring,
// concept gap ranking, student clustering, retest planning and timing.
// Nothing here performs I/O.
package analysis

import (
	"math"

	"github.com/pavelanni/satsession/internal/model"
)

// UnknownConcept is used for questions without a concept tag.
const UnknownConcept = "unknown"

// ConceptMisses lists the questions a student missed for one concept.
type ConceptMisses struct {
	Concept     string
	QuestionIDs []string
}

// StudentScore is the graded result of one student's main test.
type StudentScore struct {
	StudentID         string
	TotalQuestions    int
	CorrectCount      int
	IncorrectCount    int
	Unanswered        int
	Percentage        int
	MissedQuestionIDs []string
	// MissedByConcept keeps concepts in the order they were first missed.
	MissedByConcept []ConceptMisses
}

// Missed returns the question ids missed for concept, or nil.
func (s StudentScore) Missed(concept string) []string {
	for _, cm := range s.MissedByConcept {
		if cm.Concept == concept {
			return cm.QuestionIDs
		}
	}
	return nil
}

// ScoreStudent grades a student's answers against the full question set.
// A question only counts as correct when its answer is graded correct;
// unanswered and ungraded questions are misses.
func ScoreStudent(studentID string, questions []model.Question, answers []model.Answer) StudentScore {
	byQuestion := make(map[string]model.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	score := StudentScore{
		StudentID:      studentID,
		TotalQuestions: len(questions),
	}
	conceptIdx := make(map[string]int)

	for _, q := range questions {
		a, ok := byQuestion[q.ID]
		if ok && a.IsCorrect != nil && *a.IsCorrect {
			score.CorrectCount++
			continue
		}
		score.MissedQuestionIDs = append(score.MissedQuestionIDs, q.ID)

		concept := ConceptOf(q)
		i, seen := conceptIdx[concept]
		if !seen {
			i = len(score.MissedByConcept)
			conceptIdx[concept] = i
			score.MissedByConcept = append(score.MissedByConcept, ConceptMisses{Concept: concept})
		}
		score.MissedByConcept[i].QuestionIDs = append(score.MissedByConcept[i].QuestionIDs, q.ID)
	}

	score.IncorrectCount = len(score.MissedQuestionIDs)
	score.Unanswered = max(0, len(questions)-len(answers))
	score.Percentage = Percent(score.CorrectCount, score.TotalQuestions)
	return score
}

// ConceptOf returns the question's concept tag or UnknownConcept.
func ConceptOf(q model.Question) string {
	if q.ConceptTag == "" {
		return UnknownConcept
	}
	return q.ConceptTag
}

// Percent returns round(part/total*100), or 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
