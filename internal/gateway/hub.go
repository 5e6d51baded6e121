package gateway

import (
	"context"
	"sync"

	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/repository"
)

// Hub owns a document repository and fans its change notifications out to
// per-key subscribers and to global listeners.
type Hub struct {
	repo repository.DocumentRepository

	mu        sync.RWMutex
	nextID    int
	byKey     map[model.ResourceKey]map[int]func()
	listeners map[int]func(model.ResourceKey)
}

func NewHub(repo repository.DocumentRepository) *Hub {
	h := &Hub{
		repo:      repo,
		byKey:     make(map[model.ResourceKey]map[int]func()),
		listeners: make(map[int]func(model.ResourceKey)),
	}
	repo.SetChangeNotifier(h.dispatch)
	return h
}

func (h *Hub) Repository() repository.DocumentRepository {
	return h.repo
}

func (h *Hub) Get(ctx context.Context, key model.ResourceKey) ([]byte, error) {
	return h.repo.Get(ctx, key)
}

func (h *Hub) Put(ctx context.Context, key model.ResourceKey, data []byte) error {
	return h.repo.Put(ctx, key, data)
}

// Subscribe registers fn for changes to key.
func (h *Hub) Subscribe(key model.ResourceKey, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	if h.byKey[key] == nil {
		h.byKey[key] = make(map[int]func())
	}
	h.byKey[key][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.byKey[key], id)
		if len(h.byKey[key]) == 0 {
			delete(h.byKey, key)
		}
	}
}

// Listen registers fn for changes to any key.
func (h *Hub) Listen(fn func(model.ResourceKey)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.listeners[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

func (h *Hub) dispatch(key model.ResourceKey) {
	h.mu.RLock()
	subs := make([]func(), 0, len(h.byKey[key]))
	for _, fn := range h.byKey[key] {
		subs = append(subs, fn)
	}
	listeners := make([]func(model.ResourceKey), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.RUnlock()

	gatewayLogger.Debug().
		Str("resource", string(key)).
		Int("subscribers", len(subs)).
		Msg("Dispatching document change")

	for _, fn := range subs {
		fn()
	}
	for _, fn := range listeners {
		fn(key)
	}
}
