package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"

	"github.com/pavelanni/satsession/internal/model"
)

const (
	minTutors           = 1
	maxTutors           = 3
	minRetestQuestions  = 5
	maxRetestQuestions  = 50
	defaultRetestTarget = 20
	minDurationMinutes  = 10
	maxDurationMinutes  = 300
	defaultDurationMin  = 180
	pinAttempts         = 10
)

var pinPattern = regexp.MustCompile(`^\d{6}$`)

// CreateParams describes a new session. Zero counts take their defaults.
type CreateParams struct {
	TestID              string `json:"testId" validate:"required"`
	TutorCount          int    `json:"tutorCount" validate:"min=1,max=3"`
	RetestQuestionCount int    `json:"retestQuestionCount" validate:"omitempty,min=5,max=50"`
	TestDurationMinutes int    `json:"testDurationMinutes" validate:"omitempty,min=10,max=300"`
}

func (p *CreateParams) normalize() error {
	if p.TestID == "" {
		return fmt.Errorf("test id is required: %w", model.ErrInvalid)
	}
	if p.TutorCount < minTutors || p.TutorCount > maxTutors {
		return fmt.Errorf("tutor count must be %d-%d: %w", minTutors, maxTutors, model.ErrInvalid)
	}
	if p.RetestQuestionCount == 0 {
		p.RetestQuestionCount = defaultRetestTarget
	}
	if p.RetestQuestionCount < minRetestQuestions || p.RetestQuestionCount > maxRetestQuestions {
		return fmt.Errorf("retest question count must be %d-%d: %w", minRetestQuestions, maxRetestQuestions, model.ErrInvalid)
	}
	if p.TestDurationMinutes == 0 {
		p.TestDurationMinutes = defaultDurationMin
	}
	if p.TestDurationMinutes < minDurationMinutes || p.TestDurationMinutes > maxDurationMinutes {
		return fmt.Errorf("test duration must be %d-%d minutes: %w", minDurationMinutes, maxDurationMinutes, model.ErrInvalid)
	}
	return nil
}

// Create opens a lobby session for one of the tutor's tests.
func (s *Service) Create(ctx context.Context, tutor *model.User, p CreateParams) (model.Session, error) {
	if err := p.normalize(); err != nil {
		return model.Session{}, err
	}
	test, err := s.store.GetTest(ctx, p.TestID)
	if err != nil {
		return model.Session{}, err
	}
	if test.OrgID != tutor.OrgID {
		return model.Session{}, fmt.Errorf("test %s: %w", p.TestID, model.ErrNotFound)
	}

	for range pinAttempts {
		sess, err := s.store.CreateSession(ctx, model.Session{
			OrgID:               tutor.OrgID,
			TestID:              test.ID,
			CreatedBy:           tutor.ID,
			PIN:                 newPIN(),
			Status:              model.StatusLobby,
			TutorCount:          p.TutorCount,
			RetestQuestionCount: p.RetestQuestionCount,
			TestDurationMinutes: p.TestDurationMinutes,
			CreatedAt:           s.now(),
		})
		if errors.Is(err, model.ErrConflict) {
			continue
		}
		if err != nil {
			return sess, fmt.Errorf("create session: %w", err)
		}
		slog.Info("session created", "session_id", sess.ID, "test_id", test.ID, "tutor", tutor.Username)
		return sess, nil
	}
	return model.Session{}, fmt.Errorf("no free pin after %d attempts: %w", pinAttempts, model.ErrConflict)
}

func newPIN() string {
	return fmt.Sprintf("%06d", 100000+rand.IntN(900000))
}

// Authorize returns the session if the user's organization owns it.
func (s *Service) Authorize(ctx context.Context, user *model.User, sessionID string) (model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return sess, err
	}
	if user == nil || sess.OrgID != user.OrgID {
		return model.Session{}, fmt.Errorf("session %s: %w", sessionID, model.ErrForbidden)
	}
	return sess, nil
}

// Get returns a session.
func (s *Service) Get(ctx context.Context, sessionID string) (model.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// List returns the sessions of the tutor's organization.
func (s *Service) List(ctx context.Context, tutor *model.User) ([]model.Session, error) {
	return s.store.ListSessions(ctx, tutor.OrgID)
}

// Delete removes a session and all its data. Only the creator may delete.
func (s *Service) Delete(ctx context.Context, tutor *model.User, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.CreatedBy != tutor.ID {
		return fmt.Errorf("only the creator can delete session %s: %w", sessionID, model.ErrForbidden)
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	slog.Info("session deleted", "session_id", sessionID, "tutor", tutor.Username)
	return nil
}

// Lobby is what a student sees after entering a PIN.
type Lobby struct {
	SessionID string              `json:"sessionId"`
	Status    model.SessionStatus `json:"status"`
	Students  []model.Student     `json:"students"`
}

// FindByPIN looks up a joinable session and the students who may join it.
func (s *Service) FindByPIN(ctx context.Context, pin string) (Lobby, error) {
	if !pinPattern.MatchString(pin) {
		return Lobby{}, fmt.Errorf("pin must be 6 digits: %w", model.ErrInvalid)
	}
	sess, err := s.store.FindJoinableSession(ctx, pin)
	if err != nil {
		return Lobby{}, err
	}
	students, err := s.store.ListStudents(ctx, sess.OrgID)
	if err != nil {
		return Lobby{}, fmt.Errorf("list students: %w", err)
	}
	if students == nil {
		students = []model.Student{}
	}
	return Lobby{SessionID: sess.ID, Status: sess.Status, Students: students}, nil
}

// Joined describes a successful join.
type Joined struct {
	StudentID     string              `json:"studentId"`
	StudentName   string              `json:"studentName"`
	SessionID     string              `json:"sessionId"`
	SessionStatus model.SessionStatus `json:"sessionStatus"`
}

// Join adds a student to a lobby or testing session. Joining again returns
// the existing membership.
func (s *Service) Join(ctx context.Context, sessionID, pin, studentID string) (Joined, error) {
	if !pinPattern.MatchString(pin) {
		return Joined{}, fmt.Errorf("pin must be 6 digits: %w", model.ErrInvalid)
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Joined{}, err
	}
	if sess.PIN != pin {
		return Joined{}, fmt.Errorf("invalid pin: %w", model.ErrForbidden)
	}
	if sess.Status != model.StatusLobby && sess.Status != model.StatusTesting {
		return Joined{}, fmt.Errorf("session is not accepting students: %w", model.ErrInvalid)
	}
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return Joined{}, err
	}
	if student.OrgID != sess.OrgID {
		return Joined{}, fmt.Errorf("student %s: %w", studentID, model.ErrNotFound)
	}

	joined := Joined{StudentID: student.ID, StudentName: student.Name, SessionID: sess.ID, SessionStatus: sess.Status}
	if _, err := s.store.GetSessionStudent(ctx, sess.ID, student.ID); err == nil {
		return joined, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return Joined{}, err
	}
	if err := s.store.AddSessionStudent(ctx, sess.ID, student.ID, s.now()); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return Joined{}, fmt.Errorf("name already taken: %w", model.ErrConflict)
		}
		return Joined{}, err
	}
	slog.Info("student joined", "session_id", sess.ID, "student_id", student.ID)
	return joined, nil
}

// AddStudent registers a student in the tutor's organization.
func (s *Service) AddStudent(ctx context.Context, tutor *model.User, name string) (model.Student, error) {
	if name == "" {
		return model.Student{}, fmt.Errorf("name is required: %w", model.ErrInvalid)
	}
	return s.store.CreateStudent(ctx, tutor.OrgID, name)
}

// ListStudents returns the students of the tutor's organization.
func (s *Service) ListStudents(ctx context.Context, tutor *model.User) ([]model.Student, error) {
	return s.store.ListStudents(ctx, tutor.OrgID)
}
