package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mrz1836/krypt/internal/fileutil"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// cacheFilePermissions is the permission mode for cache files.
const cacheFilePermissions = 0o640

// FileStore persists string-encoded entries as a JSON object in one file.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates a file-backed counter store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the cache file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the stored count. A malformed file is moved aside and
// reported as ErrCacheCorrupted.
func (s *FileStore) Get() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return 0, false, err
	}

	raw, ok := entries[CounterKey]
	if !ok {
		return 0, false, nil
	}
	n, err := decodeCount(raw)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// Set writes the count, preserving any other entries in the file.
func (s *FileStore) Set(n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		// The corrupt file was moved aside; start over.
		entries = map[string]string{}
	}
	entries[CounterKey] = encodeCount(n)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	if err := fileutil.WriteAtomic(s.path, data, cacheFilePermissions); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Close is a no-op; every Set is already durable.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		dest, moveErr := fileutil.Quarantine(s.path, s.now())
		if moveErr != nil {
			return nil, krypterr.Translate(krypterr.ErrCacheCorrupted, fmt.Errorf("%w (also failed to move file: %w)", err, moveErr))
		}
		return nil, krypterr.WithDetails(krypterr.Translate(krypterr.ErrCacheCorrupted, err), map[string]string{"moved_to": dest})
	}
	return entries, nil
}
