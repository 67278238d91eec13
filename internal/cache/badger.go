package cache

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps the counter in an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the stored count.
func (s *BadgerStore) Get() (uint64, bool, error) {
	var (
		n     uint64
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(CounterKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := decodeCount(string(val))
			if err != nil {
				return err
			}
			n, found = v, true
			return nil
		})
	})
	if err != nil {
		return 0, false, err
	}
	return n, found, nil
}

// Set replaces the stored count.
func (s *BadgerStore) Set(n uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(CounterKey), []byte(encodeCount(n)))
	})
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
