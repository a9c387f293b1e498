package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/tendant/student-records/pkg/students"
	"github.com/tendant/student-records/pkg/students/objectkey"
)

// LocatorPrefix starts every locator handed out by the memory backend.
const LocatorPrefix = "memory://"

type object struct {
	data        []byte
	contentType string
}

// Backend is an in-memory implementation of the students.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	keys    objectkey.Generator
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
		keys:    objectkey.NewRandomGenerator(),
	}
}

// Store keeps a copy of the image bytes and returns memory://<key>.
func (b *Backend) Store(ctx context.Context, image *students.Image, folder string) (string, error) {
	if image.IsEmpty() {
		return "", nil
	}

	key := b.keys.GenerateKey(folder, image.FileName)
	data := make([]byte, len(image.Data))
	copy(data, image.Data)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: data, contentType: image.ContentType}

	return LocatorPrefix + key, nil
}

// Delete drops the object; unknown or foreign locators are ignored.
func (b *Backend) Delete(ctx context.Context, locator string) error {
	key, ok := keyOf(locator)
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)

	return nil
}

// Get returns the stored bytes and content type for locator.
func (b *Backend) Get(locator string) ([]byte, string, bool) {
	key, ok := keyOf(locator)
	if !ok {
		return nil, "", false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, exists := b.objects[key]
	if !exists {
		return nil, "", false
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, obj.contentType, true
}

// Has reports whether locator refers to a stored object.
func (b *Backend) Has(locator string) bool {
	_, _, ok := b.Get(locator)
	return ok
}

// Len returns the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func keyOf(locator string) (string, bool) {
	if !strings.HasPrefix(locator, LocatorPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(locator, LocatorPrefix)
	if idx := strings.IndexByte(key, '?'); idx >= 0 {
		key = key[:idx]
	}
	return key, key != ""
}
