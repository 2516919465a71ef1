package localstore

import (
	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend persists the graph in a BadgerDB database.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens or creates a BadgerDB-backed store at path.
func OpenBadger(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{db: db}, nil
}

// Get returns the value stored under key.
func (b *BadgerBackend) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores value under key.
func (b *BadgerBackend) Set(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes key. Deleting an absent key is a no-op.
func (b *BadgerBackend) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Scan visits every key with the given prefix in key order.
func (b *BadgerBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
