// Package repository stores one JSON document per content collection and
// reports changes made to it, by this process or by others.
package repository

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/cache"
	"github.com/debemdeboas/lending-admin/internal/model"
)

type DocumentRepository interface {
	// Init connects to the backend and starts change detection. It must be
	// called before any other method.
	Init(ctx context.Context) error

	// Get returns model.ErrNotFound when no document exists for key.
	Get(ctx context.Context, key model.ResourceKey) ([]byte, error)
	Put(ctx context.Context, key model.ResourceKey, data []byte) error
	Keys(ctx context.Context) ([]model.ResourceKey, error)

	// SetChangeNotifier sets a function that will be called when a document changes.
	SetChangeNotifier(notifier func(model.ResourceKey))

	Close() error
}

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

type changeNotifier struct {
	mu sync.RWMutex
	fn func(model.ResourceKey)
}

func (n *changeNotifier) SetChangeNotifier(notifier func(model.ResourceKey)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fn = notifier
}

func (n *changeNotifier) notify(key model.ResourceKey) {
	n.mu.RLock()
	fn := n.fn
	n.mu.RUnlock()

	if fn != nil {
		go fn(key)
	}
}

// hashTracker remembers the last seen content hash per key so polling
// backends only report documents that actually changed.
type hashTracker struct {
	hashes *cache.Cache[model.ResourceKey, string]
}

func newHashTracker() hashTracker {
	return hashTracker{hashes: cache.NewCache[model.ResourceKey, string]()}
}

// observe records hash for key and reports whether it differs from the
// previous observation.
func (h hashTracker) observe(key model.ResourceKey, hash string) bool {
	prev, ok := h.hashes.Swap(key, hash)
	return !ok || prev != hash
}

// sweep records a full listing and returns the keys that changed.
func (h hashTracker) sweep(current map[model.ResourceKey]string) []model.ResourceKey {
	var changed []model.ResourceKey
	for key, hash := range current {
		if h.observe(key, hash) {
			changed = append(changed, key)
		}
	}
	return changed
}

func (h hashTracker) seed(current map[model.ResourceKey]string) {
	h.hashes.SetTo(current)
}
