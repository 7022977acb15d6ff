// Package memory provides an in-memory store.KV for tests and for
// deployments that do not need persistence across restarts.
package memory

import (
	"context"
	"sync"

	"github.com/medvoice/scribectl/pkg/store"
)

// KV is a map-backed store.KV. The zero value is not usable; construct
// with New. Safe for concurrent use.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

// New returns an empty in-memory KV.
func New() *KV {
	return &KV{data: make(map[string]string)}
}

// Get implements store.KV.
func (k *KV) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.data[key]
	return v, ok, nil
}

// Set implements store.KV.
func (k *KV) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

// Delete implements store.KV.
func (k *KV) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

// Len returns the number of stored keys. Test helper.
func (k *KV) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.data)
}

var _ store.KV = (*KV)(nil)
