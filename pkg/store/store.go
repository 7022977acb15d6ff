// Package store defines the key-value storage abstraction backing session
// persistence.
//
// The interface is public so that external packages can supply alternative
// backends (Postgres, in-memory, browser-style local storage bridges)
// without depending on scribectl internals. Persistence in this system is
// best-effort by policy — the session façade above this interface logs and
// swallows failures — but implementations still report errors honestly so
// that policy lives in one place.
//
// Every implementation must be safe for concurrent use.
package store

import "context"

// KV is a minimal string key-value store.
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
