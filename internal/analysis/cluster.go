package analysis

import "github.com/pavelanni/satsession/internal/model"

const (
	// MixedFocus labels the independent group next to tutor groups.
	MixedFocus = "mixed"
	// GeneralReviewFocus labels the single fallback group.
	GeneralReviewFocus = "general review"
)

// Group is one cluster produced by ClusterStudents.
type Group struct {
	GroupType    model.GroupType
	ConceptFocus string
	StudentIDs   []string
}

// ClusterStudents partitions the scored students into at most tutorCount
// concept-focused tutor groups and one independent group.
//
// The top-ranked concepts become tutor_1..tutor_3 in rank order. A student
// who missed several of them lands only in the highest-ranked group.
// Everyone left over goes to the independent group. Every student appears in
// exactly one group.
func ClusterStudents(scores []StudentScore, freqs []ConceptFrequency, tutorCount int) []Group {
	tutorCount = min(max(tutorCount, 1), len(model.TutorGroupTypes))
	n := min(tutorCount, len(freqs))

	var groups []Group
	assigned := make(map[string]bool)
	for i := 0; i < n; i++ {
		var eligible []string
		for _, id := range freqs[i].StudentIDs {
			if !assigned[id] {
				eligible = append(eligible, id)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		for _, id := range eligible {
			assigned[id] = true
		}
		groups = append(groups, Group{
			GroupType:    model.TutorGroupTypes[i],
			ConceptFocus: freqs[i].Concept,
			StudentIDs:   eligible,
		})
	}

	var rest []string
	for _, s := range scores {
		if !assigned[s.StudentID] {
			assigned[s.StudentID] = true
			rest = append(rest, s.StudentID)
		}
	}
	if len(rest) > 0 {
		groups = append(groups, Group{
			GroupType:    model.GroupIndependent,
			ConceptFocus: MixedFocus,
			StudentIDs:   rest,
		})
	}

	if len(groups) == 0 {
		all := make([]string, 0, len(scores))
		for _, s := range scores {
			all = append(all, s.StudentID)
		}
		groups = append(groups, Group{
			GroupType:    model.GroupIndependent,
			ConceptFocus: GeneralReviewFocus,
			StudentIDs:   all,
		})
	}
	return groups
}
