package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/student-records/pkg/students"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements students.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the students table when it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return students.ErrContactExists
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return students.ErrStudentNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const studentColumns = `id, f_name, l_name, contact, address, COALESCE(picture, ''), created_at, updated_at`

func scanStudent(row pgx.Row) (*students.Student, error) {
	s := &students.Student{}
	err := row.Scan(
		&s.ID,
		&s.FirstName,
		&s.LastName,
		&s.Contact,
		&s.Address,
		&s.Picture,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) ListStudents(ctx context.Context) ([]*students.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list students", err)
	}
	defer rows.Close()

	list := make([]*students.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan student", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list students", err)
	}

	return list, nil
}

func (r *Repository) GetStudent(ctx context.Context, id int64) (*students.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	s, err := scanStudent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get student", err)
	}
	return s, nil
}

func (r *Repository) ExistsByContact(ctx context.Context, contact string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE contact = $1)`, contact).Scan(&exists)
	if err != nil {
		return false, r.handlePostgresError("exists by contact", err)
	}
	return exists, nil
}

func (r *Repository) CreateStudent(ctx context.Context, s *students.Student) error {
	query := `
		INSERT INTO students (f_name, l_name, contact, address, picture, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, query,
		s.FirstName,
		s.LastName,
		s.Contact,
		s.Address,
		s.Picture,
		now,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create student", err)
	}
	return nil
}

func (r *Repository) UpdateStudent(ctx context.Context, s *students.Student) error {
	query := `
		UPDATE students
		SET f_name = $2, l_name = $3, contact = $4, address = $5,
			picture = NULLIF($6, ''), updated_at = $7
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		s.ID,
		s.FirstName,
		s.LastName,
		s.Contact,
		s.Address,
		s.Picture,
		time.Now().UTC(),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update student", err)
	}
	return nil
}

func (r *Repository) DeleteStudent(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete student", err)
	}
	if tag.RowsAffected() == 0 {
		return students.ErrStudentNotFound
	}
	return nil
}
