package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/satsession/internal/model"
)

// CreateStudent adds a student to an organization. Names are unique per
// organization.
func (s *Store) CreateStudent(ctx context.Context, orgID, name string) (model.Student, error) {
	st := model.Student{ID: newID(), OrgID: orgID, Name: name, CreatedAt: time.Now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO students (id, org_id, name, created_at) VALUES (?, ?, ?, ?)`,
		st.ID, st.OrgID, st.Name, st.CreatedAt,
	)
	if err != nil {
		return st, conflict(err, "student "+name)
	}
	return st, nil
}

// GetStudent returns a student by ID.
func (s *Store) GetStudent(ctx context.Context, id string) (model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, name, created_at FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &st.OrgID, &st.Name, &st.CreatedAt)
	if err != nil {
		return st, notFound(err, "student "+id)
	}
	return st, nil
}

// ListStudents returns an organization's students ordered by name.
func (s *Store) ListStudents(ctx context.Context, orgID string) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, name, created_at FROM students WHERE org_id = ? ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.OrgID, &st.Name, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// AddSessionStudent records that a student joined a session. A second insert
// for the same pair fails with ErrConflict.
func (s *Store) AddSessionStudent(ctx context.Context, sessionID, studentID string, joinedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_students (session_id, student_id, joined_at) VALUES (?, ?, ?)`,
		sessionID, studentID, joinedAt,
	)
	if err != nil {
		return conflict(err, "session student")
	}
	return nil
}

const sessionStudentQuery = `SELECT ss.session_id, ss.student_id, st.name, ss.joined_at, ss.test_submitted, ss.test_submitted_at
	FROM session_students ss JOIN students st ON st.id = ss.student_id`

func scanSessionStudent(row scanner) (model.SessionStudent, error) {
	var ss model.SessionStudent
	err := row.Scan(&ss.SessionID, &ss.StudentID, &ss.StudentName, &ss.JoinedAt, &ss.TestSubmitted, &ss.TestSubmittedAt)
	return ss, err
}

// GetSessionStudent returns one roster entry.
func (s *Store) GetSessionStudent(ctx context.Context, sessionID, studentID string) (model.SessionStudent, error) {
	ss, err := scanSessionStudent(s.db.QueryRowContext(ctx,
		sessionStudentQuery+` WHERE ss.session_id = ? AND ss.student_id = ?`, sessionID, studentID))
	if err != nil {
		return ss, notFound(err, fmt.Sprintf("student %s in session %s", studentID, sessionID))
	}
	return ss, nil
}

// ListSessionStudents returns a session's roster in join order.
func (s *Store) ListSessionStudents(ctx context.Context, sessionID string) ([]model.SessionStudent, error) {
	rows, err := s.db.QueryContext(ctx,
		sessionStudentQuery+` WHERE ss.session_id = ? ORDER BY ss.joined_at, st.name`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SessionStudent
	for rows.Next() {
		ss, err := scanSessionStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// MarkTestSubmitted stamps the student's main test as submitted.
func (s *Store) MarkTestSubmitted(ctx context.Context, sessionID, studentID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE session_students SET test_submitted = 1, test_submitted_at = ?
		 WHERE session_id = ? AND student_id = ?`,
		at, sessionID, studentID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("student %s in session %s: %w", studentID, sessionID, model.ErrNotFound)
	}
	return nil
}
