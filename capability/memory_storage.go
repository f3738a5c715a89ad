package capability

import (
	"context"
	"sync"
)

// memoryStorage is a trivial in-process Storage[T] implementation. It is
// not durable across process restarts; it exists so the core and its
// tests don't require a platform keychain to exercise storage-backed
// behavior, and so embedding apps have a reference implementation of
// the capability's exact contract.
type memoryStorage[T any] struct {
	mu    sync.Mutex
	value T
	has   bool
}

// NewMemoryStorage returns an in-memory Storage[T].
func NewMemoryStorage[T any]() Storage[T] {
	return &memoryStorage[T]{}
}

func (m *memoryStorage[T]) Get(ctx context.Context) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.has, nil
}

func (m *memoryStorage[T]) Set(ctx context.Context, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.has = true
	return nil
}

func (m *memoryStorage[T]) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value = zero
	m.has = false
	return nil
}
