// Package storagetest provides an in-memory AttachmentStore for tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/templui/marketplace/internal/storage"
)

var _ storage.AttachmentStore = (*Memory)(nil)

type Memory struct {
	mu      sync.Mutex
	objects map[string]string // key -> content type
	err     error

	Deleted []string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]string)}
}

// Put simulates a client completing an upload.
func (m *Memory) Put(key, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = contentType
}

// Fail makes every backend call return err wrapped in storage.ErrStorage; nil heals.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *Memory) UploadURL(_ context.Context, key, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", fmt.Errorf("%w: %w", storage.ErrStorage, m.err)
	}
	return fmt.Sprintf("https://upload.test/items/%s?content-type=%s&signature=test", key, contentType), nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, fmt.Errorf("%w: %w", storage.ErrStorage, m.err)
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorage, m.err)
	}
	delete(m.objects, key)
	m.Deleted = append(m.Deleted, key)
	return nil
}

func (m *Memory) PublicURL(key string) string {
	return "https://items.test/" + key
}
