package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var validKey = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// FileStore writes one file per key under a directory. Each write goes to a
// temp file in the same directory and is renamed into place.
type FileStore struct {
	dir       string
	namespace string
	sealer    Sealer
	mu        sync.Mutex
}

var _ Store = (*FileStore)(nil)

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithSealer encrypts every value at rest.
func WithSealer(s Sealer) FileStoreOption {
	return func(fs *FileStore) {
		fs.sealer = s
	}
}

// WithNamespace prefixes file names so several accounts or apps can share a
// directory. Defaults to "legid"; the same characters as keys are allowed.
func WithNamespace(ns string) FileStoreOption {
	return func(fs *FileStore) {
		if ns != "" {
			fs.namespace = ns
		}
	}
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, options ...FileStoreOption) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("[NewFileStore] dir is required")
	}
	s := &FileStore{
		dir:       dir,
		namespace: "legid",
	}
	for _, opt := range options {
		opt(s)
	}
	if !validKey.MatchString(s.namespace) {
		return nil, fmt.Errorf("[NewFileStore] invalid namespace %q", s.namespace)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[NewFileStore] mkdir %s: %w", dir, err)
	}
	return s, nil
}

func (s *FileStore) Put(key Key, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if value, err = s.sealer.Seal(value, []byte(key)); err != nil {
			return fmt.Errorf("[FileStore.Put] seal: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("[FileStore.Put] create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore.Put] write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore.Put] sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileStore.Put] close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("[FileStore.Put] rename: %w", err)
	}
	return nil
}

func (s *FileStore) Get(key Key) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[FileStore.Get] read: %w", err)
	}
	if s.sealer != nil {
		opened, err := s.sealer.Open(data, []byte(key))
		if err != nil {
			return nil, fmt.Errorf("[FileStore.Get] %w: %v", ErrCorrupt, err)
		}
		return opened, nil
	}
	return data, nil
}

func (s *FileStore) Delete(key Key) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("[FileStore.Delete] remove: %w", err)
	}
	return nil
}

func (s *FileStore) path(key Key) (string, error) {
	if !validKey.MatchString(string(key)) {
		return "", fmt.Errorf("[FileStore] invalid key %q", key)
	}
	ext := ".json"
	if s.sealer != nil {
		ext = ".sealed"
	}
	return filepath.Join(s.dir, s.namespace+"_"+string(key)+ext), nil
}
