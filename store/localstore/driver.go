package localstore

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"graphmodel/connection"
	"graphmodel/store"
)

// Drivers for the embedded store. "memory://" opens a fresh in-memory
// store; "badger:///path/to/db" opens or creates a BadgerDB-backed store
// at the given path.
func init() {
	connection.RegisterDriver("memory", connection.DriverFunc(openMemory))
	connection.RegisterDriver("badger", connection.DriverFunc(openBadger))
}

func openMemory(storeURL string, logger *zap.Logger) (store.Client, error) {
	return NewStore(NewMemoryBackend(), logger), nil
}

func openBadger(storeURL string, logger *zap.Logger) (store.Client, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, err
	}
	if u.Path == "" {
		return nil, fmt.Errorf("localstore: badger URL %q carries no path", storeURL)
	}
	backend, err := OpenBadger(u.Path)
	if err != nil {
		return nil, err
	}
	return NewStore(backend, logger), nil
}
