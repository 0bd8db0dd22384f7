// Package blob stores uploaded artwork bytes and hands back a public URL.
package blob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store uploads bytes at path and returns the URL they can be fetched from.
type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// ArtworkPath is the object path for one uploaded artwork.
func ArtworkPath(at time.Time, fileName string) string {
	return fmt.Sprintf("student_artworks/%d_%s", at.UnixMilli(), fileName)
}

// Object is one blob held by Memory.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory keeps blobs in process. URLs use the memory:// scheme.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	// FailFor makes Upload fail for paths containing any of these substrings.
	FailFor []string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, s := range m.FailFor {
		if s != "" && strings.Contains(path, s) {
			return "", fmt.Errorf("blob: write %s refused", path)
		}
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[path] = Object{Data: buf, ContentType: contentType}
	m.mu.Unlock()
	return "memory://" + path, nil
}

// Get returns a stored object.
func (m *Memory) Get(path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[path]
	return o, ok
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
