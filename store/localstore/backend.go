// Package localstore is an embedded implementation of the store client
// contract: a single-process graph store holding nodes, relationships and
// indexes in a pluggable key/value backend, and executing pattern query
// statements directly in their structured form. It backs tests and
// single-node development; remote stores plug into the same contract
// through their own drivers.
package localstore

import (
	"errors"
	"sort"
	"sync"
)

// ErrKeyNotFound is returned by Backend.Get for absent keys.
var ErrKeyNotFound = errors.New("localstore: key not found")

// Backend is the key/value substrate the graph engine runs on.
//
// Implementations must be safe for concurrent access. Scan visits every
// key with the given prefix; visit order is unspecified.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Scan(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// MemoryBackend is a map-backed Backend for tests and throwaway stores.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (b *MemoryBackend) Get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores value under key.
func (b *MemoryBackend) Set(key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	b.data[string(key)] = v
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (b *MemoryBackend) Delete(key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, string(key))
	return nil
}

// Scan visits every key with the given prefix in sorted order.
func (b *MemoryBackend) Scan(prefix []byte, fn func(key, value []byte) error) error {
	b.mu.RLock()
	p := string(prefix)
	keys := make([]string, 0)
	for k := range b.data {
		if len(k) >= len(p) && k[:len(p)] == p {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = b.data[k]
	}
	b.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the backend. A memory backend has nothing to release.
func (b *MemoryBackend) Close() error {
	return nil
}
