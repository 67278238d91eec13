// Package cache provides the durable transaction counter slot.
//
// The counter is advisory: it short-circuits an "are there any transfers"
// check and is never the source of the transfer list itself.
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mrz1836/krypt/internal/config"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// CounterKey is the well-known name of the persisted transaction count.
const CounterKey = "transactionCount"

// CounterStore is a durable slot holding the last observed transaction count.
type CounterStore interface {
	// Get returns the stored count and whether one has been stored.
	Get() (uint64, bool, error)

	// Set replaces the stored count.
	Set(n uint64) error

	// Close releases the backend.
	Close() error
}

// Open returns the counter store for the configured backend.
func Open(backend, path string) (CounterStore, error) {
	switch backend {
	case config.CacheBackendFile, "":
		return NewFileStore(path), nil
	case config.CacheBackendBadger:
		return OpenBadgerStore(path)
	default:
		return nil, krypterr.WithDetails(krypterr.ErrConfigInvalid, map[string]string{"cache.backend": backend})
	}
}

func encodeCount(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func decodeCount(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, krypterr.Translate(krypterr.ErrCacheCorrupted, fmt.Errorf("value %q: %w", s, err))
	}
	return n, nil
}

// MemoryStore keeps the counter in process memory. It does not survive
// restarts and is meant for tests and throwaway sessions.
type MemoryStore struct {
	mu    sync.Mutex
	value string
	set   bool
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored count.
func (m *MemoryStore) Get() (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return 0, false, nil
	}
	n, err := decodeCount(m.value)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// Set replaces the stored count.
func (m *MemoryStore) Set(n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = encodeCount(n)
	m.set = true
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Compile-time interface checks
var (
	_ CounterStore = (*MemoryStore)(nil)
	_ CounterStore = (*FileStore)(nil)
	_ CounterStore = (*BadgerStore)(nil)
)
