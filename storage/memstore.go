package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store for tests and ephemeral vaults.
// The Fail* fields inject errors.
type MemStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	pinned map[string]bool

	FailPut error
	FailGet error
	FailPin error
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		blobs:  make(map[string][]byte),
		pinned: make(map[string]bool),
	}
}

func (m *MemStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return "", m.FailPut
	}

	id, err := ComputeCID(data)
	if err != nil {
		return "", err
	}
	m.blobs[id] = bytes.Clone(data)
	return id, nil
}

func (m *MemStore) Get(ctx context.Context, cid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailGet != nil {
		return nil, m.FailGet
	}

	data, ok := m.blobs[cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
	}
	return bytes.Clone(data), nil
}

func (m *MemStore) Pin(ctx context.Context, cid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPin != nil {
		return m.FailPin
	}
	if _, ok := m.blobs[cid]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, cid)
	}
	m.pinned[cid] = true
	return nil
}

func (m *MemStore) Has(ctx context.Context, cid string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[cid]
	return ok, nil
}

// Pinned reports whether cid was pinned.
func (m *MemStore) Pinned(cid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pinned[cid]
}

// Delete drops a blob, simulating a store that lost content.
func (m *MemStore) Delete(cid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, cid)
	delete(m.pinned, cid)
}

// Len returns the number of stored blobs.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
