package students

import "context"

// Service is the main interface for the student records service
type Service interface {
	ListStudents(ctx context.Context) ([]*Student, error)
	GetStudent(ctx context.Context, id int64) (*Student, error)
	CreateStudent(ctx context.Context, req CreateStudentRequest) (*Student, error)
	UpdateStudent(ctx context.Context, req UpdateStudentRequest) (*Student, error)
	DeleteStudent(ctx context.Context, id int64) error
}
