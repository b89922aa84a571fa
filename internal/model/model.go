package model

import (
	"context"
	"time"
)

// UserRole represents a staff member's access level.
type UserRole string

const (
	// UserRoleTutor runs sessions for their organization.
	UserRoleTutor UserRole = "tutor"
	// UserRoleAdmin can additionally manage tutor accounts.
	UserRoleAdmin UserRole = "admin"
)

// User is a tutor or administrator account.
type User struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"org_id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents a tutor's login session.
type AuthSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// StudentIdentity is the (student, session) pair carried by a student token.
type StudentIdentity struct {
	StudentID string
	SessionID string
}

type studentCtxKey struct{}

// ContextWithStudent stores the verified student identity in context.
func ContextWithStudent(ctx context.Context, id StudentIdentity) context.Context {
	return context.WithValue(ctx, studentCtxKey{}, id)
}

// StudentFromContext retrieves the student identity from context.
func StudentFromContext(ctx context.Context) (StudentIdentity, bool) {
	id, ok := ctx.Value(studentCtxKey{}).(StudentIdentity)
	return id, ok
}

// SessionStatus is a phase of the tutoring session lifecycle.
type SessionStatus string

const (
	StatusLobby     SessionStatus = "lobby"
	StatusTesting   SessionStatus = "testing"
	StatusPaused    SessionStatus = "paused"
	StatusAnalyzing SessionStatus = "analyzing"
	StatusLesson    SessionStatus = "lesson"
	StatusRetest    SessionStatus = "retest"
	StatusComplete  SessionStatus = "complete"
)

// Section is the part of the test a question belongs to.
type Section string

const (
	SectionReadingWriting Section = "reading_writing"
	SectionMath           Section = "math"
)

// AnswerChoice is one of the four multiple-choice letters.
type AnswerChoice string

const (
	ChoiceA AnswerChoice = "A"
	ChoiceB AnswerChoice = "B"
	ChoiceC AnswerChoice = "C"
	ChoiceD AnswerChoice = "D"
)

// Valid reports whether c is one of A-D.
func (c AnswerChoice) Valid() bool {
	switch c {
	case ChoiceA, ChoiceB, ChoiceC, ChoiceD:
		return true
	}
	return false
}

// GroupType identifies a lesson group.
type GroupType string

const (
	GroupTutor1      GroupType = "tutor_1"
	GroupTutor2      GroupType = "tutor_2"
	GroupTutor3      GroupType = "tutor_3"
	GroupIndependent GroupType = "independent"
)

// TutorGroupTypes lists tutor groups in rank order.
var TutorGroupTypes = []GroupType{GroupTutor1, GroupTutor2, GroupTutor3}

// RetestSource records why a question was put on a student's retest.
type RetestSource string

const (
	SourceMissed  RetestSource = "missed"
	SourcePadding RetestSource = "padding"
)

// Organization owns tutors, students and tests.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Student is an organization member who takes tests.
type Student struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Test is an uploaded practice test.
type Test struct {
	ID             string    `json:"id"`
	OrgID          string    `json:"org_id"`
	Name           string    `json:"name"`
	CreatedBy      string    `json:"created_by"`
	TotalQuestions int       `json:"total_questions"`
	CreatedAt      time.Time `json:"created_at"`
}

// Question is a multiple-choice test item.
type Question struct {
	ID               string       `json:"id"`
	TestID           string       `json:"test_id"`
	QuestionNumber   int          `json:"question_number"`
	Text             string       `json:"question_text"`
	AnswerA          string       `json:"answer_a"`
	AnswerB          string       `json:"answer_b"`
	AnswerC          string       `json:"answer_c"`
	AnswerD          string       `json:"answer_d"`
	CorrectAnswer    AnswerChoice `json:"correct_answer"`
	Section          Section      `json:"section"`
	ConceptTag       string       `json:"concept_tag"`
	AIConfidence     float64      `json:"ai_confidence"`
	HasGraphic       bool         `json:"has_graphic"`
	AnswersAreVisual bool         `json:"answers_are_visual"`
}

// Session is a timed tutoring session for one test.
type Session struct {
	ID                  string        `json:"id"`
	OrgID               string        `json:"org_id"`
	TestID              string        `json:"test_id"`
	CreatedBy           string        `json:"created_by"`
	PIN                 string        `json:"pin_code"`
	Status              SessionStatus `json:"status"`
	TutorCount          int           `json:"tutor_count"`
	RetestQuestionCount int           `json:"retest_question_count"`
	TestDurationMinutes int           `json:"test_duration_minutes"`
	TestStartedAt       *time.Time    `json:"test_started_at,omitempty"`
	PausedAt            *time.Time    `json:"paused_at,omitempty"`
	TotalPausedMs       int64         `json:"total_paused_ms"`
	CreatedAt           time.Time     `json:"created_at"`
}

// SessionStudent is a student's membership in a session.
type SessionStudent struct {
	SessionID       string     `json:"session_id"`
	StudentID       string     `json:"student_id"`
	StudentName     string     `json:"student_name"`
	JoinedAt        time.Time  `json:"joined_at"`
	TestSubmitted   bool       `json:"test_submitted"`
	TestSubmittedAt *time.Time `json:"test_submitted_at,omitempty"`
}

// Answer is a student's response to a question, on the main test or the retest.
// IsCorrect is nil until graded.
type Answer struct {
	SessionID      string        `json:"session_id"`
	StudentID      string        `json:"student_id"`
	QuestionID     string        `json:"question_id"`
	SelectedAnswer *AnswerChoice `json:"selected_answer"`
	IsCorrect      *bool         `json:"is_correct"`
	AnsweredAt     time.Time     `json:"answered_at"`
}

// RetestQuestion places a question on a student's retest.
type RetestQuestion struct {
	SessionID  string       `json:"session_id"`
	StudentID  string       `json:"student_id"`
	QuestionID string       `json:"question_id"`
	Source     RetestSource `json:"source"`
	Order      int          `json:"question_order"`
}

// LessonGroup is a cluster of students working on one concept.
type LessonGroup struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"session_id"`
	GroupType    GroupType   `json:"group_type"`
	ConceptFocus string      `json:"concept_focus"`
	Members      []Member    `json:"members"`
	Plan         *LessonPlan `json:"plan,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Member is a student listed in a lesson group.
type Member struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

// LessonPlan holds generated content for a group: a tutor guide for tutor
// groups or practice problems for the independent group.
type LessonPlan struct {
	ID               string            `json:"id"`
	SessionID        string            `json:"session_id"`
	GroupID          string            `json:"group_id"`
	TutorGuide       *string           `json:"tutor_guide"`
	PracticeProblems []PracticeProblem `json:"practice_problems"`
	CreatedAt        time.Time         `json:"created_at"`
}

// PracticeProblem is a generated scaffolded problem.
type PracticeProblem struct {
	ID            string       `json:"id"`
	Text          string       `json:"question_text"`
	AnswerA       string       `json:"answer_a"`
	AnswerB       string       `json:"answer_b"`
	AnswerC       string       `json:"answer_c"`
	AnswerD       string       `json:"answer_d"`
	CorrectAnswer AnswerChoice `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	Difficulty    int          `json:"difficulty"`
	ConceptTag    string       `json:"concept_tag"`
}

// Counterpart is a freshly worded question testing the same concept.
type Counterpart struct {
	QuestionText  string       `json:"questionText"`
	AnswerA       string       `json:"answerA"`
	AnswerB       string       `json:"answerB"`
	AnswerC       string       `json:"answerC"`
	AnswerD       string       `json:"answerD"`
	CorrectAnswer AnswerChoice `json:"correctAnswer"`
}

// QuestionImport is used for loading a practice test from JSON.
type QuestionImport struct {
	QuestionNumber   int          `json:"question_number"`
	Text             string       `json:"question_text"`
	AnswerA          string       `json:"answer_a"`
	AnswerB          string       `json:"answer_b"`
	AnswerC          string       `json:"answer_c"`
	AnswerD          string       `json:"answer_d"`
	CorrectAnswer    AnswerChoice `json:"correct_answer"`
	Section          Section      `json:"section"`
	ConceptTag       string       `json:"concept_tag"`
	AIConfidence     float64      `json:"ai_confidence"`
	HasGraphic       bool         `json:"has_graphic"`
	AnswersAreVisual bool         `json:"answers_are_visual"`
}

// TestImport is the JSON document accepted by the import command.
type TestImport struct {
	Name      string           `json:"name"`
	Questions []QuestionImport `json:"questions"`
}
