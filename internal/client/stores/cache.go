// Package stores holds the client-side entity caches. Each store is a
// read-through projection of the last known server state: mutations go to
// the server first and the cache is merged only from the confirmed
// response, so a failed call never leaves the cache partially mutated.
package stores

import (
	"sync"

	"craftdesk.org/internal/pm"
)

// listPayload matches the server's collection envelope.
type listPayload[T any] struct {
	Items []T     `json:"items"`
	Page  pm.Page `json:"page"`
}

// cache is an ordered collection keyed by id.
type cache[T any] struct {
	mu    sync.RWMutex
	items []T
	page  pm.Page
	id    func(T) string
}

func newCache[T any](id func(T) string) *cache[T] {
	return &cache[T]{id: id}
}

// replaceAll swaps in a freshly listed page with its metadata.
func (c *cache[T]) replaceAll(items []T, page pm.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T(nil), items...)
	c.page = page
}

// prepend puts a newly created record at the front of the collection.
func (c *cache[T]) prepend(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T{item}, c.items...)
	c.page.Total++
}

// replace swaps a record in place by id. A record not currently cached is
// left alone; the caller still gets the canonical copy from the server.
func (c *cache[T]) replace(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id(item)
	for i := range c.items {
		if c.id(c.items[i]) == id {
			c.items[i] = item
			return
		}
	}
}

// remove drops a record by id.
func (c *cache[T]) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.id(c.items[i]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			if c.page.Total > 0 {
				c.page.Total--
			}
			return
		}
	}
}

// find returns the cached record by id.
func (c *cache[T]) find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.items {
		if c.id(c.items[i]) == id {
			return c.items[i], true
		}
	}
	var zero T
	return zero, false
}

// snapshot returns a copy of the collection and its page metadata.
func (c *cache[T]) snapshot() ([]T, pm.Page) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...), c.page
}
