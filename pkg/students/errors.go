package students

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error types
var (
	// ErrStudentNotFound indicates no student has the requested id
	ErrStudentNotFound = errors.New("student not found")

	// ErrContactExists indicates another student already uses the contact
	ErrContactExists = errors.New("student contact already exists")

	// ErrStorageFailed indicates a blob store operation failed
	ErrStorageFailed = errors.New("storage operation failed")
)

// StudentError represents an error related to a student operation
type StudentError struct {
	StudentID int64
	Op        string
	Err       error
}

func (e *StudentError) Error() string {
	return fmt.Sprintf("student operation %s failed for student %d: %v", e.Op, e.StudentID, e.Err)
}

func (e *StudentError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations.
// It always matches ErrStorageFailed.
type StorageError struct {
	Backend string
	Locator string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for %q on backend %s: %v", e.Op, e.Locator, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailed
}

// ValidationError lists invalid request fields with a message per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add records a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func notFound(id int64) error {
	return fmt.Errorf("%w with id: %d", ErrStudentNotFound, id)
}

func contactConflict(contact string) error {
	return fmt.Errorf("%w: a student with contact '%s' already exists", ErrContactExists, contact)
}
