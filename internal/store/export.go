package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/satsession/internal/model"
)

// SaveReport caches a student's report, replacing an earlier one.
func (s *Store) SaveReport(ctx context.Context, sessionID, studentID string, r model.ReportSummary, at time.Time) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress_reports (session_id, student_id, summary, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, student_id) DO UPDATE SET summary = excluded.summary, created_at = excluded.created_at`,
		sessionID, studentID, string(data), at,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReport returns a cached report.
func (s *Store) GetReport(ctx context.Context, sessionID, studentID string) (model.ReportSummary, error) {
	var (
		r   model.ReportSummary
		raw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM progress_reports WHERE session_id = ? AND student_id = ?`,
		sessionID, studentID,
	).Scan(&raw)
	if err != nil {
		return r, notFound(err, "report")
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return r, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// ListReports returns the cached reports of a session ordered by student name.
func (s *Store) ListReports(ctx context.Context, sessionID string) ([]model.StudentReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.student_id, r.summary FROM progress_reports r
		 JOIN students st ON st.id = r.student_id
		 WHERE r.session_id = ? ORDER BY st.name`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StudentReport
	for rows.Next() {
		var (
			sr  model.StudentReport
			raw string
		)
		if err := rows.Scan(&sr.StudentID, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &sr.Report); err != nil {
			return nil, fmt.Errorf("decode report for %s: %w", sr.StudentID, err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}
