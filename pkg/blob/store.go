// Package blob provides content-addressed storage for uploaded documents.
// File identity is opaque to callers: Store returns an address derived
// from the content hash, and the engine records only metadata alongside it.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync"
)

// ErrBlobNotFound is returned when no blob exists at an address.
var ErrBlobNotFound = errors.New("blob not found")

// Address is a content-addressed identifier (SHA-256 of the content).
type Address string

// Store is a blob sink with create/delete/read operations. Implementations
// must be safe for concurrent use.
type Store interface {
	// Put stores a blob and returns its content address. Storing the same
	// content twice is a no-op returning the same address.
	Put(ctx context.Context, content []byte) (Address, error)

	// Open returns a reader for the blob at the given address.
	Open(ctx context.Context, address Address) (io.ReadCloser, error)

	// Delete removes the blob at the given address.
	Delete(ctx context.Context, address Address) error

	// Has reports whether a blob exists at the given address.
	Has(ctx context.Context, address Address) bool
}

func computeAddress(content []byte) Address {
	sum := sha256.Sum256(content)
	return Address(hex.EncodeToString(sum[:]))
}

// MemoryStore is an in-memory Store used in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[Address][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[Address][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, content []byte) (Address, error) {
	address := computeAddress(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Content-addressed: if it exists, it is the same content
	if _, exists := s.blobs[address]; exists {
		return address, nil
	}

	stored := make([]byte, len(content))
	copy(stored, content)
	s.blobs[address] = stored
	return address, nil
}

func (s *MemoryStore) Open(ctx context.Context, address Address) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, exists := s.blobs[address]
	if !exists {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *MemoryStore) Delete(ctx context.Context, address Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[address]; !exists {
		return ErrBlobNotFound
	}
	delete(s.blobs, address)
	return nil
}

func (s *MemoryStore) Has(ctx context.Context, address Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.blobs[address]
	return exists
}

var _ Store = (*MemoryStore)(nil)
