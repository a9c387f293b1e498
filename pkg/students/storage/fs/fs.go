package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/student-records/pkg/students"
	"github.com/tendant/student-records/pkg/students/objectkey"
)

const backendName = "fs"

// DefaultUploadDir is the upload directory used when none is configured.
const DefaultUploadDir = "uploads/"

// Backend is a filesystem implementation of the students.BlobStore interface
type Backend struct {
	baseDir   string
	uploadDir string
	keys      objectkey.Generator
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Directory locators are resolved against (default: working directory)
	UploadDir string // Directory under BaseDir holding uploads, also the locator prefix (default: "uploads/")
	Keys      objectkey.Generator
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	baseDir := config.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		baseDir = wd
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	uploadDir := strings.Trim(filepath.ToSlash(config.UploadDir), "/")
	if uploadDir == "" {
		uploadDir = DefaultUploadDir
	} else {
		uploadDir += "/"
	}

	keys := config.Keys
	if keys == nil {
		keys = objectkey.NewRandomGenerator()
	}

	return &Backend{
		baseDir:   baseDir,
		uploadDir: uploadDir,
		keys:      keys,
	}, nil
}

// UploadRoot returns the absolute directory holding uploaded files.
func (b *Backend) UploadRoot() string {
	return filepath.Join(b.baseDir, filepath.FromSlash(b.uploadDir))
}

// URLPath returns the root-relative URL prefix of every locator, e.g. "/uploads/".
func (b *Backend) URLPath() string {
	return "/" + b.uploadDir
}

// Store writes the image under the upload directory and returns a
// root-relative locator such as /uploads/students/<uuid>.png.
func (b *Backend) Store(ctx context.Context, image *students.Image, folder string) (string, error) {
	if image.IsEmpty() {
		return "", nil
	}

	key := b.keys.GenerateKey(folder, image.FileName)
	locator := b.URLPath() + key
	filePath := filepath.Join(b.UploadRoot(), filepath.FromSlash(key))

	// Create directory structure if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", b.storageError("store", locator, fmt.Errorf("failed to create directory: %w", err))
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", b.storageError("store", locator, fmt.Errorf("failed to create file: %w", err))
	}

	if _, err := io.Copy(file, bytes.NewReader(image.Data)); err != nil {
		file.Close()
		return "", b.storageError("store", locator, fmt.Errorf("failed to write file: %w", err))
	}
	if err := file.Close(); err != nil {
		return "", b.storageError("store", locator, fmt.Errorf("failed to close file: %w", err))
	}

	return locator, nil
}

// Delete removes the file behind locator. Missing files are ignored.
func (b *Backend) Delete(ctx context.Context, locator string) error {
	if strings.TrimSpace(locator) == "" {
		return nil
	}

	filePath, err := b.resolve(locator)
	if err != nil {
		return b.storageError("delete", locator, err)
	}

	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return b.storageError("delete", locator, fmt.Errorf("failed to stat file: %w", err))
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return b.storageError("delete", locator, fmt.Errorf("failed to delete file: %w", err))
	}

	return nil
}

// resolve maps a locator to a path under baseDir.
func (b *Backend) resolve(locator string) (string, error) {
	relative := strings.TrimPrefix(locator, "/")
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(relative))

	rel, err := filepath.Rel(b.baseDir, filePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("locator escapes base directory")
	}
	return filePath, nil
}

func (b *Backend) storageError(op, locator string, err error) error {
	return &students.StorageError{Backend: backendName, Locator: locator, Op: op, Err: err}
}
