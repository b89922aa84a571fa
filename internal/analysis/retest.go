package analysis

import (
	"math"
	"math/rand/v2"

	"github.com/pavelanni/satsession/internal/model"
)

// RetestItem is one planned retest question.
type RetestItem struct {
	QuestionID string
	Source     model.RetestSource
	Order      int
}

// PlanRetest selects up to target questions for a student's retest.
//
// Questions are taken in three tiers until the target is reached: every
// missed question in the given order, then other questions sharing a concept
// tag with a missed question in test order, then the remaining questions in
// an order drawn from rng. Orders are 1-based positions in the result.
// A nil rng keeps test order for the last tier.
func PlanRetest(questions []model.Question, missedIDs []string, target int, rng *rand.Rand) []RetestItem {
	if target <= 0 {
		return nil
	}

	known := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		known[q.ID] = q
	}

	var plan []RetestItem
	included := make(map[string]bool)
	add := func(id string, src model.RetestSource) bool {
		if included[id] || len(plan) >= target {
			return false
		}
		included[id] = true
		plan = append(plan, RetestItem{QuestionID: id, Source: src, Order: len(plan) + 1})
		return true
	}

	concepts := make(map[string]bool)
	for _, id := range missedIDs {
		q, ok := known[id]
		if !ok {
			continue
		}
		add(id, model.SourceMissed)
		if q.ConceptTag != "" {
			concepts[q.ConceptTag] = true
		}
	}

	if len(plan) < target {
		for _, q := range questions {
			if concepts[q.ConceptTag] {
				add(q.ID, model.SourcePadding)
			}
		}
	}

	if len(plan) < target {
		var rest []string
		for _, q := range questions {
			if !included[q.ID] {
				rest = append(rest, q.ID)
			}
		}
		if rng != nil {
			rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		}
		for _, id := range rest {
			add(id, model.SourcePadding)
		}
	}

	return plan
}

// RetestDuration returns the time budget in minutes for a question mix:
// 1.5 minutes per math question and 1.25 per reading/writing question,
// rounded up.
func RetestDuration(mathCount, rwCount int) int {
	return int(math.Ceil(float64(mathCount)*1.5 + float64(rwCount)*1.25))
}

// SectionCounts counts math and reading/writing questions. Anything that is
// not math is counted as reading/writing.
func SectionCounts(questions []model.Question) (mathCount, rwCount int) {
	for _, q := range questions {
		if q.Section == model.SectionMath {
			mathCount++
		} else {
			rwCount++
		}
	}
	return mathCount, rwCount
}
