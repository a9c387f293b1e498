package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/student-records/pkg/students"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const timeFormat = time.RFC3339Nano

// Store provides a SQLite-backed students.Repository.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite store at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const studentColumns = `id, f_name, l_name, contact, address, COALESCE(picture, ''), created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (*students.Student, error) {
	var (
		st                   students.Student
		createdAt, updatedAt string
	)
	if err := row.Scan(&st.ID, &st.FirstName, &st.LastName, &st.Contact, &st.Address, &st.Picture, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if st.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if st.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &st, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]*students.Student, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	list := make([]*students.Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		list = append(list, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return list, nil
}

func (s *Store) GetStudent(ctx context.Context, id int64) (*students.Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, students.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

func (s *Store) ExistsByContact(ctx context.Context, contact string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE contact = ?)`, contact).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by contact: %w", err)
	}
	return exists == 1, nil
}

func (s *Store) CreateStudent(ctx context.Context, st *students.Student) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO students (f_name, l_name, contact, address, picture, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		st.FirstName, st.LastName, st.Contact, st.Address, st.Picture,
		now.Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return students.ErrContactExists
		}
		return fmt.Errorf("create student: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	st.ID = id
	st.CreatedAt = now
	st.UpdatedAt = now
	return nil
}

func (s *Store) UpdateStudent(ctx context.Context, st *students.Student) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE students
		SET f_name = ?, l_name = ?, contact = ?, address = ?, picture = NULLIF(?, ''), updated_at = ?
		WHERE id = ?`,
		st.FirstName, st.LastName, st.Contact, st.Address, st.Picture, now.Format(timeFormat), st.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return students.ErrContactExists
		}
		return fmt.Errorf("update student: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update student: %w", err)
	} else if n == 0 {
		return students.ErrStudentNotFound
	}
	st.UpdatedAt = now
	return nil
}

func (s *Store) DeleteStudent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete student: %w", err)
	} else if n == 0 {
		return students.ErrStudentNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
}

var _ students.Repository = (*Store)(nil)
