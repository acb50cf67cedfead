package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore stores blobs on the local filesystem under a root directory,
// sharded by the first two hex characters of the address.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", dir, err)
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) path(address Address) string {
	a := string(address)
	if len(a) < 2 {
		return filepath.Join(s.root, a)
	}
	return filepath.Join(s.root, a[:2], a)
}

func (s *LocalStore) Put(ctx context.Context, content []byte) (Address, error) {
	address := computeAddress(content)
	path := s.path(address)

	if _, err := os.Stat(path); err == nil {
		return address, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	// Write to a temp file then rename so readers never see partial content.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp blob file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close blob file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize blob file: %w", err)
	}

	return address, nil
}

func (s *LocalStore) Open(ctx context.Context, address Address) (io.ReadCloser, error) {
	f, err := os.Open(s.path(address))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, address Address) error {
	err := os.Remove(s.path(address))
	if os.IsNotExist(err) {
		return ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *LocalStore) Has(ctx context.Context, address Address) bool {
	_, err := os.Stat(s.path(address))
	return err == nil
}

var _ Store = (*LocalStore)(nil)
