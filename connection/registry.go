// Package connection manages the process-wide graph store handle and the
// per-type category anchor cache.
//
// Store implementations register a Driver for their URL scheme, the way
// database/sql drivers do; the wire client to a remote store lives outside
// this module and plugs in through the same mechanism.
package connection

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"graphmodel/config"
	"graphmodel/pkg/errors"
	"graphmodel/store"
)

const (
	// categoryIndexName is the fixed index holding category anchor nodes.
	categoryIndexName = "Category"
	// categoryKey is the index key anchors are filed under.
	categoryKey = "category"
)

// Driver opens a store client for a configured URL.
type Driver interface {
	Open(storeURL string, logger *zap.Logger) (store.Client, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(storeURL string, logger *zap.Logger) (store.Client, error)

// Open implements Driver.
func (f DriverFunc) Open(storeURL string, logger *zap.Logger) (store.Client, error) {
	return f(storeURL, logger)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver makes a store driver available under the given URL scheme.
// Registering the same scheme twice panics, matching database/sql.
func RegisterDriver(scheme string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("connection: RegisterDriver driver is nil")
	}
	if _, dup := drivers[scheme]; dup {
		panic("connection: RegisterDriver called twice for scheme " + scheme)
	}
	drivers[scheme] = driver
}

// Registry is the injectable handle to one store client plus the caches
// shared by every entity type: category anchors and index handles. Both
// caches are read-mostly and append-only; concurrent first access for the
// same key is deduplicated so only one store round trip is made.
type Registry struct {
	client store.Client
	logger *zap.Logger

	mu         sync.RWMutex
	categories map[string]*store.NodeRef
	indexes    map[string]store.Index

	group singleflight.Group
}

// NewRegistry wraps an already constructed client. This is the injection
// point for test doubles.
func NewRegistry(client store.Client, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		client:     client,
		logger:     logger,
		categories: make(map[string]*store.NodeRef),
		indexes:    make(map[string]store.Index),
	}
}

// Initialize builds a registry from configuration by dispatching on the
// store URL's scheme.
func Initialize(cfg *config.Config, logger *zap.Logger) (*Registry, error) {
	u, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("connection: invalid store URL %q: %w", cfg.StoreURL, err)
	}

	driversMu.RLock()
	driver, ok := drivers[u.Scheme]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("connection: no driver registered for scheme %q (store URL %q)", u.Scheme, cfg.StoreURL)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := driver.Open(cfg.StoreURL, logger)
	if err != nil {
		return nil, errors.NewStore("open", err)
	}

	logger.Info("graph store connection established",
		zap.String("scheme", u.Scheme),
	)
	return NewRegistry(client, logger), nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the process-wide registry, initializing it from the
// environment exactly once. First and concurrent callers share the same
// initialization; prefer explicit Initialize plus injection where possible.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		cfg, err := config.FromEnv()
		if err != nil {
			defaultErr = err
			return
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			defaultErr = err
			return
		}
		defaultReg, defaultErr = Initialize(cfg, logger)
	})
	return defaultReg, defaultErr
}

// Client returns the underlying store client.
func (r *Registry) Client() store.Client {
	return r.client
}

// Logger returns the registry's logger for components that inherit it.
func (r *Registry) Logger() *zap.Logger {
	return r.logger
}

// NodeIndex returns the node index with the given name, creating it on
// first access and caching the handle for the process lifetime.
func (r *Registry) NodeIndex(ctx context.Context, name string) (store.Index, error) {
	r.mu.RLock()
	idx, ok := r.indexes[name]
	r.mu.RUnlock()
	if ok {
		return idx, nil
	}

	v, err, _ := r.group.Do("index:"+name, func() (interface{}, error) {
		idx, err := r.client.GetOrCreateIndex(ctx, store.KindNode, name)
		if err != nil {
			return nil, errors.NewStore("getOrCreateIndex", err)
		}
		r.mu.Lock()
		r.indexes[name] = idx
		r.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(store.Index), nil
}

// Category returns the cached anchor node for an entity type, creating it
// by get-or-create on first access. No eviction, no TTL.
func (r *Registry) Category(ctx context.Context, typeName string) (*store.NodeRef, error) {
	r.mu.RLock()
	anchor, ok := r.categories[typeName]
	r.mu.RUnlock()
	if ok {
		return anchor, nil
	}

	v, err, _ := r.group.Do("category:"+typeName, func() (interface{}, error) {
		idx, err := r.NodeIndex(ctx, categoryIndexName)
		if err != nil {
			return nil, err
		}
		anchor, err := idx.GetOrCreateNode(ctx, categoryKey, typeName, map[string]interface{}{
			categoryKey: typeName,
		})
		if err != nil {
			return nil, errors.NewStore("getOrCreateCategory", err)
		}
		r.logger.Debug("category anchor resolved",
			zap.String("type", typeName),
			zap.String("node_id", anchor.ID),
		)
		r.mu.Lock()
		r.categories[typeName] = anchor
		r.mu.Unlock()
		return anchor, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.NodeRef), nil
}

// Close releases the underlying client.
func (r *Registry) Close() error {
	return r.client.Close()
}
