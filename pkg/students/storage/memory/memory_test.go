package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/student-records/pkg/students"
)

func TestMemoryBackend_StoreGetDelete(t *testing.T) {
	b := New()
	ctx := context.Background()

	locator, err := b.Store(ctx, &students.Image{Data: []byte("hello"), ContentType: "image/png", FileName: "x.png"}, "students")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(locator, "memory://students/"), locator)

	data, contentType, ok := b.Get(locator)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "image/png", contentType)

	require.NoError(t, b.Delete(ctx, locator+"?v=1"))
	assert.False(t, b.Has(locator))
	assert.Equal(t, 0, b.Len())
}

func TestMemoryBackend_EmptyAndForeign(t *testing.T) {
	b := New()
	ctx := context.Background()

	locator, err := b.Store(ctx, nil, "students")
	require.NoError(t, err)
	assert.Empty(t, locator)

	assert.NoError(t, b.Delete(ctx, ""))
	assert.NoError(t, b.Delete(ctx, "/uploads/students/a.png"))
}
