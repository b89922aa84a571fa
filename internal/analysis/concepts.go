package analysis

import "sort"

// ConceptFrequency aggregates misses of one concept across a session.
type ConceptFrequency struct {
	Concept     string
	Count       int
	StudentIDs  []string
	QuestionIDs []string
}

// ConceptFrequencies merges the per-student misses into a table ranked by
// total miss count, descending. Ties keep the order in which concepts were
// first encountered.
func ConceptFrequencies(scores []StudentScore) []ConceptFrequency {
	type entry struct {
		freq      ConceptFrequency
		students  map[string]struct{}
		questions map[string]struct{}
	}
	var order []*entry
	byConcept := make(map[string]*entry)

	for _, s := range scores {
		for _, cm := range s.MissedByConcept {
			e, ok := byConcept[cm.Concept]
			if !ok {
				e = &entry{
					freq:      ConceptFrequency{Concept: cm.Concept},
					students:  make(map[string]struct{}),
					questions: make(map[string]struct{}),
				}
				byConcept[cm.Concept] = e
				order = append(order, e)
			}
			e.freq.Count += len(cm.QuestionIDs)
			if _, dup := e.students[s.StudentID]; !dup {
				e.students[s.StudentID] = struct{}{}
				e.freq.StudentIDs = append(e.freq.StudentIDs, s.StudentID)
			}
			for _, qID := range cm.QuestionIDs {
				if _, dup := e.questions[qID]; !dup {
					e.questions[qID] = struct{}{}
					e.freq.QuestionIDs = append(e.freq.QuestionIDs, qID)
				}
			}
		}
	}

	out := make([]ConceptFrequency, len(order))
	for i, e := range order {
		out[i] = e.freq
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// StudentSummary lists a student's weak concepts with their percentage.
type StudentSummary struct {
	StudentID string
	WeakAreas []string
	Score     int
}

// GapAnalysis is the session-wide view handed to the lesson planner.
type GapAnalysis struct {
	TopConcepts []ConceptFrequency
	Students    []StudentSummary
}

const topConceptLimit = 10

// AnalyzeGaps summarizes weak areas per student and keeps the ten most
// missed concepts.
func AnalyzeGaps(scores []StudentScore, freqs []ConceptFrequency) GapAnalysis {
	ga := GapAnalysis{TopConcepts: freqs}
	if len(freqs) > topConceptLimit {
		ga.TopConcepts = freqs[:topConceptLimit]
	}
	for _, s := range scores {
		weak := make([]string, 0, len(s.MissedByConcept))
		for _, cm := range s.MissedByConcept {
			weak = append(weak, cm.Concept)
		}
		ga.Students = append(ga.Students, StudentSummary{
			StudentID: s.StudentID,
			WeakAreas: weak,
			Score:     s.Percentage,
		})
	}
	return ga
}
