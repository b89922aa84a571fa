package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pavelanni/satsession/internal/model"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'tutor',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (org_id) REFERENCES organizations(id)
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (org_id, name)
	);

	CREATE TABLE IF NOT EXISTS tests (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_by TEXT NOT NULL,
		total_questions INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		test_id TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		question_text TEXT NOT NULL DEFAULT '',
		answer_a TEXT NOT NULL DEFAULT '',
		answer_b TEXT NOT NULL DEFAULT '',
		answer_c TEXT NOT NULL DEFAULT '',
		answer_d TEXT NOT NULL DEFAULT '',
		correct_answer TEXT NOT NULL,
		section TEXT NOT NULL,
		concept_tag TEXT NOT NULL DEFAULT '',
		ai_confidence REAL NOT NULL DEFAULT 0,
		has_graphic INTEGER NOT NULL DEFAULT 0,
		answers_are_visual INTEGER NOT NULL DEFAULT 0,
		counterpart_json TEXT,
		UNIQUE (test_id, question_number),
		FOREIGN KEY (test_id) REFERENCES tests(id)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		test_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		pin_code TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'lobby',
		tutor_count INTEGER NOT NULL,
		retest_question_count INTEGER NOT NULL DEFAULT 20,
		test_duration_minutes INTEGER NOT NULL DEFAULT 180,
		test_started_at DATETIME,
		paused_at DATETIME,
		total_paused_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (test_id) REFERENCES tests(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS sessions_lobby_pin ON sessions(pin_code) WHERE status = 'lobby';

	CREATE TABLE IF NOT EXISTS session_students (
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		joined_at DATETIME NOT NULL,
		test_submitted INTEGER NOT NULL DEFAULT 0,
		test_submitted_at DATETIME,
		PRIMARY KEY (session_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS student_answers (
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		selected_answer TEXT,
		is_correct INTEGER,
		answered_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, student_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS retest_assemblies (
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		assembled_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS retest_questions (
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		source TEXT NOT NULL,
		question_order INTEGER NOT NULL,
		PRIMARY KEY (session_id, student_id, question_id),
		UNIQUE (session_id, student_id, question_order)
	);

	CREATE TABLE IF NOT EXISTS retest_answers (
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		selected_answer TEXT,
		is_correct INTEGER,
		answered_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, student_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS lesson_groups (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		group_type TEXT NOT NULL,
		concept_focus TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		UNIQUE (session_id, group_type)
	);

	CREATE TABLE IF NOT EXISTS lesson_group_students (
		group_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		PRIMARY KEY (group_id, student_id),
		FOREIGN KEY (group_id) REFERENCES lesson_groups(id)
	);

	CREATE TABLE IF NOT EXISTS lesson_plans (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		group_id TEXT NOT NULL UNIQUE,
		tutor_guide TEXT,
		practice_problems TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (group_id) REFERENCES lesson_groups(id)
	);

	CREATE TABLE IF NOT EXISTS analysis_jobs (
		session_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS progress_reports (
		session_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func newID() string {
	return uuid.NewString()
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY violation.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// notFound maps sql.ErrNoRows to model.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return err
}

// conflict maps uniqueness violations to model.ErrConflict.
func conflict(err error, what string) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, model.ErrConflict)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}
