package objectkey

import (
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for blob name generation strategies
type Generator interface {
	// GenerateKey returns a new object key under folder for a file
	// originally named fileName.
	GenerateKey(folder, fileName string) string
}

// RandomGenerator names objects <folder>/<uuid-v4><ext>.
type RandomGenerator struct{}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

func (g *RandomGenerator) GenerateKey(folder, fileName string) string {
	return Join(folder, uuid.NewString()+Extension(fileName))
}

// Extension returns the part of name from its last '.', dot included, or ""
// when there is none. Extensions containing a path separator are dropped.
func Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	ext := name[idx:]
	if strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}

// Join prefixes name with folder. An empty folder yields name unchanged.
func Join(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}
