// Package store wraps the employee SQLite database. The schema mirrors the
// HR export the pipeline consumes: one row per employee with their role,
// level, location, and joining date.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoMentor is returned when no senior employee is available to mentor a hire.
var ErrNoMentor = errors.New("store: no mentor available")

const dateLayout = "2006-01-02"

// Employee is one row of the employees table.
type Employee struct {
	ID           int64
	Name         string
	Email        string
	Role         string
	Department   string
	DateJoined   time.Time
	Location     string
	Level        string
	ManagerEmail string
}

// Tenure returns how long the employee has been with the company.
func (e Employee) Tenure(now time.Time) time.Duration {
	return now.Sub(e.DateJoined)
}

// Store provides employee queries over a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the employee database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY on concurrent access.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS employees (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	role          TEXT NOT NULL,
	department    TEXT NOT NULL,
	date_joined   TEXT NOT NULL,
	location      TEXT NOT NULL,
	level         TEXT NOT NULL,
	manager_email TEXT
);
CREATE INDEX IF NOT EXISTS idx_employees_role_level ON employees(role, level);
CREATE INDEX IF NOT EXISTS idx_employees_location ON employees(location);
`

// EnsureSchema creates the employees table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// Insert adds one employee. The ID field is ignored on input.
func (s *Store) Insert(ctx context.Context, e Employee) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO employees (name, email, role, department, date_joined, location, level, manager_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Name, e.Email, e.Role, e.Department, e.DateJoined.Format(dateLayout), e.Location, e.Level, e.ManagerEmail,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert %s: %w", e.Email, err)
	}
	return res.LastInsertId()
}

// Count returns the number of employees in the database.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count employees: %w", err)
	}
	return n, nil
}

// ByEmail fetches a single employee by email address.
func (s *Store) ByEmail(ctx context.Context, email string) (Employee, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM employees WHERE email = ?`, email)
	return scanEmployee(row)
}

// NewJoiners returns employees matching the configured role and level who
// joined within windowDays of now, oldest first.
func (s *Store) NewJoiners(ctx context.Context, role, level string, windowDays int, now time.Time) ([]Employee, error) {
	cutoff := now.AddDate(0, 0, -windowDays).Format(dateLayout)
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM employees
		 WHERE role = ? AND level = ? AND date_joined >= ?
		 ORDER BY date_joined ASC, id ASC`,
		role, level, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query new joiners: %w", err)
	}
	defer rows.Close()
	return collectEmployees(rows)
}

// MentorCandidates returns senior employees in the given role ordered by
// tenure (longest first). When location is non-empty only employees in that
// location are returned. The hire themself is always excluded.
func (s *Store) MentorCandidates(ctx context.Context, hireEmail, role, location string) ([]Employee, error) {
	query := selectColumns + ` FROM employees WHERE level = 'senior' AND role = ? AND email != ?`
	args := []any{role, hireEmail}
	if location != "" {
		query += ` AND location = ?`
		args = append(args, location)
	}
	query += ` ORDER BY date_joined ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query mentor candidates: %w", err)
	}
	defer rows.Close()
	return collectEmployees(rows)
}

// FindMentor picks the longest-tenured senior in the hire's location,
// falling back to any senior when the location has none. Returns ErrNoMentor
// when the company has no other seniors at all.
func (s *Store) FindMentor(ctx context.Context, hire Employee) (Employee, error) {
	local, err := s.MentorCandidates(ctx, hire.Email, hire.Role, hire.Location)
	if err != nil {
		return Employee{}, err
	}
	if len(local) > 0 {
		return local[0], nil
	}
	any, err := s.MentorCandidates(ctx, hire.Email, hire.Role, "")
	if err != nil {
		return Employee{}, err
	}
	if len(any) > 0 {
		return any[0], nil
	}
	return Employee{}, ErrNoMentor
}

const selectColumns = `SELECT id, name, email, role, department, date_joined, location, level, COALESCE(manager_email, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (Employee, error) {
	var e Employee
	var joined string
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.Department, &joined, &e.Location, &e.Level, &e.ManagerEmail); err != nil {
		return Employee{}, err
	}
	parsed, err := time.Parse(dateLayout, joined)
	if err != nil {
		return Employee{}, fmt.Errorf("store: parse date_joined %q for %s: %w", joined, e.Email, err)
	}
	e.DateJoined = parsed
	return e, nil
}

func collectEmployees(rows *sql.Rows) ([]Employee, error) {
	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
