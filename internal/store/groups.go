package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/satsession/internal/model"
)

// ClearLessonGroups removes a session's groups, memberships and plans.
func (s *Store) ClearLessonGroups(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM lesson_plans WHERE session_id = ?`,
		`DELETE FROM lesson_group_students WHERE group_id IN (SELECT id FROM lesson_groups WHERE session_id = ?)`,
		`DELETE FROM lesson_groups WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, sessionID); err != nil {
			return fmt.Errorf("clear lesson groups: %w", err)
		}
	}
	return tx.Commit()
}

// CreateLessonGroup inserts a group and its members.
func (s *Store) CreateLessonGroup(ctx context.Context, g model.LessonGroup) (model.LessonGroup, error) {
	g.ID = newID()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return g, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lesson_groups (id, session_id, group_type, concept_focus, created_at) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.SessionID, g.GroupType, g.ConceptFocus, g.CreatedAt,
	)
	if err != nil {
		return g, conflict(err, "lesson group "+string(g.GroupType))
	}
	for _, m := range g.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lesson_group_students (group_id, student_id) VALUES (?, ?)`,
			g.ID, m.StudentID,
		); err != nil {
			return g, fmt.Errorf("insert group member %s: %w", m.StudentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return g, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

// SaveLessonPlan stores the plan for a group, replacing any earlier one.
func (s *Store) SaveLessonPlan(ctx context.Context, p model.LessonPlan) (model.LessonPlan, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	problems := p.PracticeProblems
	if problems == nil {
		problems = []model.PracticeProblem{}
	}
	data, err := json.Marshal(problems)
	if err != nil {
		return p, fmt.Errorf("encode practice problems: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lesson_plans (id, session_id, group_id, tutor_guide, practice_problems, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET
		   tutor_guide = excluded.tutor_guide,
		   practice_problems = excluded.practice_problems`,
		p.ID, p.SessionID, p.GroupID, p.TutorGuide, string(data), p.CreatedAt,
	)
	if err != nil {
		return p, fmt.Errorf("save lesson plan: %w", err)
	}
	return p, nil
}

const groupOrder = `ORDER BY CASE g.group_type WHEN 'independent' THEN 1 ELSE 0 END, g.group_type`

// ListLessonGroups returns a session's groups with members and plans,
// tutor groups first.
func (s *Store) ListLessonGroups(ctx context.Context, sessionID string) ([]model.LessonGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.session_id, g.group_type, g.concept_focus, g.created_at
		 FROM lesson_groups g WHERE g.session_id = ? `+groupOrder, sessionID)
	if err != nil {
		return nil, err
	}
	var groups []model.LessonGroup
	for rows.Next() {
		var g model.LessonGroup
		if err := rows.Scan(&g.ID, &g.SessionID, &g.GroupType, &g.ConceptFocus, &g.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		if err := s.fillGroup(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// GroupForStudent returns the group a student belongs to in a session.
func (s *Store) GroupForStudent(ctx context.Context, sessionID, studentID string) (model.LessonGroup, error) {
	var g model.LessonGroup
	err := s.db.QueryRowContext(ctx,
		`SELECT g.id, g.session_id, g.group_type, g.concept_focus, g.created_at
		 FROM lesson_groups g JOIN lesson_group_students m ON m.group_id = g.id
		 WHERE g.session_id = ? AND m.student_id = ?`,
		sessionID, studentID,
	).Scan(&g.ID, &g.SessionID, &g.GroupType, &g.ConceptFocus, &g.CreatedAt)
	if err != nil {
		return g, notFound(err, "lesson group for student "+studentID)
	}
	if err := s.fillGroup(ctx, &g); err != nil {
		return g, err
	}
	return g, nil
}

func (s *Store) fillGroup(ctx context.Context, g *model.LessonGroup) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.student_id, st.name FROM lesson_group_students m
		 JOIN students st ON st.id = m.student_id
		 WHERE m.group_id = ? ORDER BY st.name`, g.ID)
	if err != nil {
		return err
	}
	g.Members = []model.Member{}
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.StudentID, &m.Name); err != nil {
			rows.Close()
			return err
		}
		g.Members = append(g.Members, m)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var (
		p        model.LessonPlan
		guide    sql.NullString
		problems string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, session_id, group_id, tutor_guide, practice_problems, created_at
		 FROM lesson_plans WHERE group_id = ?`, g.ID,
	).Scan(&p.ID, &p.SessionID, &p.GroupID, &guide, &problems, &p.CreatedAt)
	if errNoRows(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if guide.Valid {
		p.TutorGuide = &guide.String
	}
	if err := json.Unmarshal([]byte(problems), &p.PracticeProblems); err != nil {
		return fmt.Errorf("decode practice problems: %w", err)
	}
	g.Plan = &p
	return nil
}
