package students

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	folder     string
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the picture storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithFolder overrides the blob folder used for pictures
func WithFolder(folder string) Option {
	return func(s *service) {
		if folder != "" {
			s.folder = folder
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		folder: DefaultFolder,
		logger: slog.Default(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	return s, nil
}

func (s *service) ListStudents(ctx context.Context) ([]*Student, error) {
	list, err := s.repository.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return list, nil
}

func (s *service) GetStudent(ctx context.Context, id int64) (*Student, error) {
	return s.findOrFail(ctx, id)
}

func (s *service) CreateStudent(ctx context.Context, req CreateStudentRequest) (*Student, error) {
	exists, err := s.repository.ExistsByContact(ctx, req.Fields.Contact)
	if err != nil {
		return nil, fmt.Errorf("failed to check contact: %w", err)
	}
	if exists {
		return nil, contactConflict(req.Fields.Contact)
	}

	student := &Student{}
	req.Fields.applyTo(student)

	if err := s.repository.CreateStudent(ctx, student); err != nil {
		if errors.Is(err, ErrContactExists) {
			return nil, contactConflict(req.Fields.Contact)
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	if req.Image.IsEmpty() {
		s.logger.Info("Student created", "student_id", student.ID)
		return student, nil
	}

	// The blob name does not depend on the id, so the picture is attached
	// with a second write once the row exists.
	locator, err := s.blobStore.Store(ctx, req.Image, s.folder)
	if err != nil {
		s.discardCreated(ctx, student.ID)
		return nil, &StudentError{StudentID: student.ID, Op: "create", Err: err}
	}
	student.Picture = locator

	if err := s.repository.UpdateStudent(ctx, student); err != nil {
		s.releaseBlob(ctx, locator)
		s.discardCreated(ctx, student.ID)
		return nil, &StudentError{StudentID: student.ID, Op: "create", Err: err}
	}

	s.logger.Info("Student created", "student_id", student.ID, "picture", locator)
	return student, nil
}

func (s *service) UpdateStudent(ctx context.Context, req UpdateStudentRequest) (*Student, error) {
	existing, err := s.findOrFail(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if existing.Contact != req.Fields.Contact {
		exists, err := s.repository.ExistsByContact(ctx, req.Fields.Contact)
		if err != nil {
			return nil, fmt.Errorf("failed to check contact: %w", err)
		}
		if exists {
			return nil, contactConflict(req.Fields.Contact)
		}
	}

	original := *existing
	req.Fields.applyTo(existing)

	var oldReleased bool
	var locator string
	if !req.Image.IsEmpty() {
		if existing.HasPicture() {
			if err := s.blobStore.Delete(ctx, existing.Picture); err != nil {
				return nil, &StudentError{StudentID: existing.ID, Op: "update", Err: err}
			}
			oldReleased = true
		}
		locator, err = s.blobStore.Store(ctx, req.Image, s.folder)
		if err != nil {
			s.restoreAfterFailedUpdate(ctx, original, oldReleased)
			return nil, &StudentError{StudentID: existing.ID, Op: "update", Err: err}
		}
		existing.Picture = locator
	}

	if err := s.repository.UpdateStudent(ctx, existing); err != nil {
		if locator != "" {
			s.releaseBlob(ctx, locator)
		}
		s.restoreAfterFailedUpdate(ctx, original, oldReleased)
		switch {
		case errors.Is(err, ErrContactExists):
			return nil, contactConflict(req.Fields.Contact)
		case errors.Is(err, ErrStudentNotFound):
			return nil, notFound(req.ID)
		}
		return nil, &StudentError{StudentID: existing.ID, Op: "update", Err: err}
	}

	s.logger.Info("Student updated", "student_id", existing.ID)
	return existing, nil
}

func (s *service) DeleteStudent(ctx context.Context, id int64) error {
	student, err := s.findOrFail(ctx, id)
	if err != nil {
		return err
	}

	// Blob first; a failed blob delete leaves the row untouched.
	if student.HasPicture() {
		if err := s.blobStore.Delete(ctx, student.Picture); err != nil {
			return &StudentError{StudentID: id, Op: "delete", Err: err}
		}
	}

	if err := s.repository.DeleteStudent(ctx, id); err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return notFound(id)
		}
		return &StudentError{StudentID: id, Op: "delete", Err: err}
	}

	s.logger.Info("Student deleted", "student_id", id)
	return nil
}

func (s *service) findOrFail(ctx context.Context, id int64) (*Student, error) {
	student, err := s.repository.GetStudent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get student %d: %w", id, err)
	}
	return student, nil
}

// discardCreated removes a row whose picture could not be attached so that a
// failed create does not leave a record behind.
func (s *service) discardCreated(ctx context.Context, id int64) {
	if err := s.repository.DeleteStudent(ctx, id); err != nil {
		s.logger.Error("Failed to discard student after picture failure", "student_id", id, "error", err)
	}
}

// restoreAfterFailedUpdate keeps the row's previous fields after an update
// was abandoned. When the previous picture is already gone the row stops
// referencing it.
func (s *service) restoreAfterFailedUpdate(ctx context.Context, original Student, oldReleased bool) {
	if !oldReleased {
		return
	}
	original.Picture = ""
	if err := s.repository.UpdateStudent(ctx, &original); err != nil {
		s.logger.Error("Failed to clear released picture", "student_id", original.ID, "error", err)
	}
}

func (s *service) releaseBlob(ctx context.Context, locator string) {
	if err := s.blobStore.Delete(ctx, locator); err != nil {
		s.logger.Error("Failed to release picture", "picture", locator, "error", err)
	}
}
