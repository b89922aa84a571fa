package model

import "time"

// AnalysisStatus is a stage of the post-test analysis pipeline.
type AnalysisStatus string

const (
	AnalysisNotStarted         AnalysisStatus = "not_started"
	AnalysisPending            AnalysisStatus = "pending"
	AnalysisGrading            AnalysisStatus = "grading"
	AnalysisAnalyzing          AnalysisStatus = "analyzing"
	AnalysisClustering         AnalysisStatus = "clustering"
	AnalysisGeneratingLessons  AnalysisStatus = "generating_lessons"
	AnalysisGeneratingPractice AnalysisStatus = "generating_practice"
	AnalysisComplete           AnalysisStatus = "complete"
	AnalysisError              AnalysisStatus = "error"
)

// Fixed progress checkpoints. UI thresholds depend on these values.
var analysisProgress = map[AnalysisStatus]int{
	AnalysisPending:            0,
	AnalysisGrading:            10,
	AnalysisAnalyzing:          30,
	AnalysisClustering:         50,
	AnalysisGeneratingLessons:  60,
	AnalysisGeneratingPractice: 80,
	AnalysisComplete:           100,
}

// Progress returns the checkpoint percentage for s. The second result is
// false for statuses without a checkpoint (error, not_started).
func (s AnalysisStatus) Progress() (int, bool) {
	p, ok := analysisProgress[s]
	return p, ok
}

// AnalysisJob tracks the analysis pipeline of one session.
type AnalysisJob struct {
	SessionID    string         `json:"session_id"`
	Status       AnalysisStatus `json:"status"`
	Progress     int            `json:"progress"`
	ErrorMessage *string        `json:"error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}
