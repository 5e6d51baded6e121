// Package cache provides a thread-safe generic map and the rendered preview cache.
package cache

import "sync"

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// Swap stores value and returns the previous one, if any.
func (c *Cache[K, V]) Swap(key K, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.items[key]
	c.items[key] = value
	return prev, ok
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

// SetTo replaces the whole content with a copy of items.
func (c *Cache[K, V]) SetTo(items map[K]V) {
	next := make(map[K]V, len(items))
	for k, v := range items {
		next[k] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = next
}

type renderKey struct {
	contentHash string
	variant     string
}

var renderedCache = NewCache[renderKey, []byte]()

// GetRendered returns HTML previously rendered from content with the given hash.
// variant identifies the renderer and syntax theme used.
func GetRendered(contentHash, variant string) ([]byte, bool) {
	return renderedCache.Get(renderKey{contentHash, variant})
}

func SetRendered(contentHash, variant string, html []byte) {
	renderedCache.Set(renderKey{contentHash, variant}, html)
}

func ClearRendered() {
	renderedCache.Clear()
}
