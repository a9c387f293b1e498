package students

import "context"

// BlobStore defines the interface for picture storage backends
type BlobStore interface {
	// Store saves the image under folder and returns its locator.
	// It returns "" without error when the image is empty.
	Store(ctx context.Context, image *Image, folder string) (string, error)

	// Delete removes the blob identified by locator. Blank, foreign and
	// already-missing locators are a no-op.
	Delete(ctx context.Context, locator string) error
}

// Repository defines the interface for student persistence.
//
// Implementations enforce contact uniqueness themselves and report a
// violation as ErrContactExists; the service-level check is an early fail.
type Repository interface {
	ListStudents(ctx context.Context) ([]*Student, error)
	// GetStudent returns ErrStudentNotFound when id is absent
	GetStudent(ctx context.Context, id int64) (*Student, error)
	ExistsByContact(ctx context.Context, contact string) (bool, error)
	// CreateStudent assigns ID and timestamps on s
	CreateStudent(ctx context.Context, s *Student) error
	UpdateStudent(ctx context.Context, s *Student) error
	DeleteStudent(ctx context.Context, id int64) error
}
