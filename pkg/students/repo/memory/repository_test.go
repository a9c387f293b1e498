package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/student-records/pkg/students"
)

func TestRepository_CRUD(t *testing.T) {
	repo := New()
	ctx := context.Background()

	s := &students.Student{FirstName: "Ada", LastName: "Lovelace", Contact: "555-0100", Address: "London"}
	require.NoError(t, repo.CreateStudent(ctx, s))
	assert.Equal(t, int64(1), s.ID)
	assert.False(t, s.CreatedAt.IsZero())

	got, err := repo.GetStudent(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)

	exists, err := repo.ExistsByContact(ctx, "555-0100")
	require.NoError(t, err)
	assert.True(t, exists)

	got.Contact = "555-0199"
	got.Picture = "/uploads/students/a.png"
	require.NoError(t, repo.UpdateStudent(ctx, got))

	exists, err = repo.ExistsByContact(ctx, "555-0100")
	require.NoError(t, err)
	assert.False(t, exists, "old contact should be released")

	list, err := repo.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/uploads/students/a.png", list[0].Picture)

	require.NoError(t, repo.DeleteStudent(ctx, s.ID))
	_, err = repo.GetStudent(ctx, s.ID)
	assert.ErrorIs(t, err, students.ErrStudentNotFound)
	assert.ErrorIs(t, repo.DeleteStudent(ctx, s.ID), students.ErrStudentNotFound)
}

func TestRepository_ContactUniqueness(t *testing.T) {
	repo := New()
	ctx := context.Background()

	first := &students.Student{FirstName: "A", LastName: "A", Contact: "1", Address: "x"}
	second := &students.Student{FirstName: "B", LastName: "B", Contact: "2", Address: "y"}
	require.NoError(t, repo.CreateStudent(ctx, first))
	require.NoError(t, repo.CreateStudent(ctx, second))

	dup := &students.Student{FirstName: "C", LastName: "C", Contact: "1", Address: "z"}
	assert.ErrorIs(t, repo.CreateStudent(ctx, dup), students.ErrContactExists)

	second.Contact = "1"
	assert.ErrorIs(t, repo.UpdateStudent(ctx, second), students.ErrContactExists)

	// Keeping its own contact is not a conflict.
	first.Address = "moved"
	assert.NoError(t, repo.UpdateStudent(ctx, first))
}

func TestRepository_ReturnsCopies(t *testing.T) {
	repo := New()
	ctx := context.Background()

	s := &students.Student{FirstName: "A", LastName: "A", Contact: "1", Address: "x"}
	require.NoError(t, repo.CreateStudent(ctx, s))

	got, err := repo.GetStudent(ctx, s.ID)
	require.NoError(t, err)
	got.FirstName = "mutated"

	again, err := repo.GetStudent(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", again.FirstName)
}
