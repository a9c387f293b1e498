package students_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/student-records/pkg/students"
	memoryrepo "github.com/tendant/student-records/pkg/students/repo/memory"
	memorystorage "github.com/tendant/student-records/pkg/students/storage/memory"
)

// recordingStore wraps a blob store and records calls in order, with
// optional injected failures.
type recordingStore struct {
	inner     students.BlobStore
	calls     *[]string
	failStore bool
	failDel   bool
}

func (s *recordingStore) Store(ctx context.Context, image *students.Image, folder string) (string, error) {
	*s.calls = append(*s.calls, "blob.store:"+folder)
	if s.failStore {
		return "", &students.StorageError{Backend: "test", Op: "store", Err: errors.New("disk full")}
	}
	return s.inner.Store(ctx, image, folder)
}

func (s *recordingStore) Delete(ctx context.Context, locator string) error {
	*s.calls = append(*s.calls, "blob.delete:"+locator)
	if s.failDel {
		return &students.StorageError{Backend: "test", Locator: locator, Op: "delete", Err: errors.New("permission denied")}
	}
	return s.inner.Delete(ctx, locator)
}

// recordingRepo records row deletions into the shared call log. The next
// failUpdates updates fail with updateErr.
type recordingRepo struct {
	*memoryrepo.Repository
	calls       *[]string
	failUpdates int
	updateErr   error
}

func (r *recordingRepo) UpdateStudent(ctx context.Context, st *students.Student) error {
	if r.failUpdates > 0 {
		r.failUpdates--
		return r.updateErr
	}
	return r.Repository.UpdateStudent(ctx, st)
}

func (r *recordingRepo) DeleteStudent(ctx context.Context, id int64) error {
	*r.calls = append(*r.calls, "repo.delete")
	return r.Repository.DeleteStudent(ctx, id)
}

type fixture struct {
	svc   students.Service
	blobs *memorystorage.Backend
	store *recordingStore
	repo  *recordingRepo
	calls *[]string
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	calls := &[]string{}
	blobs := memorystorage.New()
	store := &recordingStore{inner: blobs, calls: calls}
	repo := &recordingRepo{Repository: memoryrepo.New(), calls: calls}

	svc, err := students.New(
		students.WithRepository(repo),
		students.WithBlobStore(store),
	)
	require.NoError(t, err)

	return &fixture{svc: svc, blobs: blobs, store: store, repo: repo, calls: calls}
}

func fields(contact string) students.StudentFields {
	return students.StudentFields{FirstName: "Ada", LastName: "Lovelace", Contact: contact, Address: "12 St James's Square"}
}

func image(data string) *students.Image {
	return &students.Image{Data: []byte(data), ContentType: "image/png", FileName: "face.png"}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := students.New(students.WithBlobStore(memorystorage.New()))
	assert.Error(t, err)

	_, err = students.New(students.WithRepository(memoryrepo.New()))
	assert.Error(t, err)
}

func TestCreateStudent_ThenGet(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100")})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Empty(t, created.Picture)

	got, err := f.svc.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "Lovelace", got.LastName)
	assert.Equal(t, "555-0100", got.Contact)
	assert.Equal(t, "12 St James's Square", got.Address)
	assert.Empty(t, *f.calls, "no blob operation without an image")
}

func TestCreateStudent_WithImage(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("png")})
	require.NoError(t, err)
	require.NotEmpty(t, created.Picture)
	assert.True(t, f.blobs.Has(created.Picture))
	assert.Equal(t, []string{"blob.store:students"}, *f.calls)

	got, err := f.svc.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Picture, got.Picture)
}

func TestCreateStudent_EmptyImageIsIgnored(t *testing.T) {
	f := setupService(t)

	created, err := f.svc.CreateStudent(context.Background(), students.CreateStudentRequest{
		Fields: fields("555-0100"),
		Image:  &students.Image{FileName: "empty.png"},
	})
	require.NoError(t, err)
	assert.Empty(t, created.Picture)
	assert.Equal(t, 0, f.blobs.Len())
}

func TestCreateStudent_DuplicateContact(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	first, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100")})
	require.NoError(t, err)

	dup := fields("555-0100")
	dup.FirstName = "Charles"
	_, err = f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: dup, Image: image("png")})
	require.Error(t, err)
	assert.ErrorIs(t, err, students.ErrContactExists)
	assert.Contains(t, err.Error(), "555-0100")
	assert.Equal(t, 0, f.blobs.Len(), "conflict must not store a blob")

	list, err := f.svc.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "Ada", list[0].FirstName)
}

func TestCreateStudent_StoreFailureLeavesNoRecord(t *testing.T) {
	f := setupService(t)
	f.store.failStore = true
	ctx := context.Background()

	_, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("png")})
	require.Error(t, err)
	assert.ErrorIs(t, err, students.ErrStorageFailed)

	list, err := f.svc.ListStudents(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateStudent_UnchangedContactIsNotAConflict(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100")})
	require.NoError(t, err)

	changed := fields("555-0100")
	changed.Address = "Ockham Park"
	updated, err := f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: created.ID, Fields: changed})
	require.NoError(t, err)
	assert.Equal(t, "Ockham Park", updated.Address)
	assert.Equal(t, "555-0100", updated.Contact)
}

func TestUpdateStudent_ContactTakenByAnother(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100")})
	require.NoError(t, err)
	second, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0200")})
	require.NoError(t, err)

	_, err = f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: second.ID, Fields: fields("555-0100")})
	assert.ErrorIs(t, err, students.ErrContactExists)

	got, err := f.svc.GetStudent(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0200", got.Contact)
}

func TestUpdateStudent_NoImageKeepsPicture(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("png")})
	require.NoError(t, err)
	*f.calls = nil

	updated, err := f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: created.ID, Fields: fields("555-0101")})
	require.NoError(t, err)
	assert.Equal(t, created.Picture, updated.Picture)
	assert.True(t, f.blobs.Has(created.Picture))
	assert.Empty(t, *f.calls)
}

func TestUpdateStudent_NewImageReplacesPicture(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("old")})
	require.NoError(t, err)
	*f.calls = nil

	updated, err := f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: created.ID, Fields: fields("555-0100"), Image: image("new")})
	require.NoError(t, err)

	assert.NotEqual(t, created.Picture, updated.Picture)
	assert.False(t, f.blobs.Has(created.Picture), "old blob must be released")
	data, _, ok := f.blobs.Get(updated.Picture)
	require.True(t, ok)
	assert.Equal(t, "new", string(data))
	assert.Equal(t, []string{"blob.delete:" + created.Picture, "blob.store:students"}, *f.calls)
}

func TestUpdateStudent_ImageWithoutPriorPicture(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100")})
	require.NoError(t, err)

	updated, err := f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: created.ID, Fields: fields("555-0100"), Image: image("png")})
	require.NoError(t, err)
	assert.NotEmpty(t, updated.Picture)
	assert.Equal(t, []string{"blob.store:students"}, *f.calls)
}

func TestUpdateStudent_BlobDeleteFailureAborts(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("old")})
	require.NoError(t, err)
	f.store.failDel = true

	changed := fields("555-0100")
	changed.FirstName = "Augusta"
	_, err = f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: created.ID, Fields: changed, Image: image("new")})
	require.Error(t, err)
	assert.ErrorIs(t, err, students.ErrStorageFailed)

	got, err := f.svc.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, created.Picture, got.Picture)
}

func TestUpdateStudent_PersistConflictReleasesNewPicture(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("old")})
	require.NoError(t, err)

	// The contact check passes but the store's unique constraint fires.
	f.repo.failUpdates = 1
	f.repo.updateErr = students.ErrContactExists

	changed := fields("555-0199")
	changed.FirstName = "Augusta"
	_, err = f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: created.ID, Fields: changed, Image: image("new")})
	require.Error(t, err)
	assert.ErrorIs(t, err, students.ErrContactExists)

	assert.Zero(t, f.blobs.Len(), "no picture may be left without an owner")

	got, err := f.svc.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "555-0100", got.Contact)
	assert.Empty(t, got.Picture, "row must not point at the released picture")
}

func TestUpdateStudent_PersistFailureWithoutPriorPicture(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100")})
	require.NoError(t, err)

	f.repo.failUpdates = 1
	f.repo.updateErr = errors.New("connection reset")

	_, err = f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: created.ID, Fields: fields("555-0100"), Image: image("new")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, f.blobs.Len())

	got, err := f.svc.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Picture)
}

func TestUpdateStudent_StoreFailureAfterRelease(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("old")})
	require.NoError(t, err)
	f.store.failStore = true

	_, err = f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: created.ID, Fields: fields("555-0100"), Image: image("new")})
	require.Error(t, err)

	got, err := f.svc.GetStudent(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Picture)
	assert.Zero(t, f.blobs.Len())
}

func TestDeleteStudent_WithPicture(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("png")})
	require.NoError(t, err)
	*f.calls = nil

	require.NoError(t, f.svc.DeleteStudent(ctx, created.ID))
	assert.Equal(t, []string{"blob.delete:" + created.Picture, "repo.delete"}, *f.calls)
	assert.False(t, f.blobs.Has(created.Picture))

	_, err = f.svc.GetStudent(ctx, created.ID)
	assert.ErrorIs(t, err, students.ErrStudentNotFound)
}

func TestDeleteStudent_WithoutPicture(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100")})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteStudent(ctx, created.ID))
	assert.Equal(t, []string{"repo.delete"}, *f.calls)
}

func TestDeleteStudent_BlobFailureKeepsRecord(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.svc.CreateStudent(ctx, students.CreateStudentRequest{Fields: fields("555-0100"), Image: image("png")})
	require.NoError(t, err)
	f.store.failDel = true

	err = f.svc.DeleteStudent(ctx, created.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, students.ErrStorageFailed)

	_, err = f.svc.GetStudent(ctx, created.ID)
	assert.NoError(t, err)
}

func TestMissingStudent_NotFound(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.svc.GetStudent(ctx, 42)
	assert.ErrorIs(t, err, students.ErrStudentNotFound)
	assert.Contains(t, err.Error(), "42")

	_, err = f.svc.UpdateStudent(ctx, students.UpdateStudentRequest{ID: 42, Fields: fields("555-0100")})
	assert.ErrorIs(t, err, students.ErrStudentNotFound)

	assert.ErrorIs(t, f.svc.DeleteStudent(ctx, 42), students.ErrStudentNotFound)
	assert.Empty(t, *f.calls)
}

func TestWithFolder(t *testing.T) {
	calls := &[]string{}
	store := &recordingStore{inner: memorystorage.New(), calls: calls}
	svc, err := students.New(
		students.WithRepository(memoryrepo.New()),
		students.WithBlobStore(store),
		students.WithFolder("avatars"),
	)
	require.NoError(t, err)

	_, err = svc.CreateStudent(context.Background(), students.CreateStudentRequest{Fields: fields("1"), Image: image("png")})
	require.NoError(t, err)
	assert.Equal(t, []string{"blob.store:avatars"}, *calls)
}

func TestValidationError(t *testing.T) {
	var verr students.ValidationError
	assert.True(t, verr.Empty())

	verr.Add("lName", "Last name is required")
	verr.Add("fName", "First name is required")
	assert.False(t, verr.Empty())
	assert.Equal(t, "validation failed: fName: First name is required, lName: Last name is required", verr.Error())
}
