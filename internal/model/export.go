package model

import "time"

// ScoreLine is a correct/total pair with its rounded percentage.
type ScoreLine struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// ConceptProgress compares main-test misses with retest successes for a concept.
type ConceptProgress struct {
	Concept       string `json:"concept"`
	MissedCount   int    `json:"missedCount"`
	RetestCorrect int    `json:"retestCorrect"`
}

// ReportSummary is a student's improvement report for one session.
type ReportSummary struct {
	StudentName       string            `json:"studentName"`
	TestScore         ScoreLine         `json:"testScore"`
	RetestScore       ScoreLine         `json:"retestScore"`
	Improvement       int               `json:"improvement"`
	MissedConcepts    []ConceptProgress `json:"missedConcepts"`
	PracticeCompleted bool              `json:"practiceCompleted"`
	GroupType         GroupType         `json:"groupType"`
}

// SessionExport is the top-level JSON structure for report export.
type SessionExport struct {
	SessionID  string          `json:"session_id"`
	TestName   string          `json:"test_name"`
	Status     SessionStatus   `json:"status"`
	ExportedAt time.Time       `json:"exported_at"`
	Reports    []StudentReport `json:"reports"`
}

// StudentReport pairs a student with their report.
type StudentReport struct {
	StudentID string        `json:"student_id"`
	Report    ReportSummary `json:"report"`
}
