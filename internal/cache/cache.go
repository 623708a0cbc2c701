// Package cache holds recently fetched query results so repeated reads
// of the same view skip the store entirely while the entry is fresh.
//
// Writes go through the Apply methods. Updates and deletes patch the
// affected entries in place and keep serving them until the TTL runs
// out. Creates also patch, but additionally mark the touched views
// stale: the new value's position relative to its neighbours is only
// known to the store, so the next read refetches the ordering.
package cache

import (
	"sync"
	"time"
)

// Freshness windows. Project scoped views expire quickly because the
// active project is where edits happen; whole-collection views tolerate
// a staler picture.
const (
	ProjectTTL    = 5 * time.Second
	CollectionTTL = 60 * time.Second
)

// Key identifies one cached view. Scope narrows the view within the
// user's collection: empty for the whole collection, "project:<id>",
// "uncategorized", or "tag:<name>".
type Key struct {
	View   string
	UserID string
	Scope  string
}

// ProjectScope builds the scope string for a project view.
func ProjectScope(projectID string) string {
	return "project:" + projectID
}

// TagScope builds the scope string for a tag view.
func TagScope(tag string) string {
	return "tag:" + tag
}

// MatchFunc reports whether a value belongs in a cached view.
type MatchFunc[T any] func(T) bool

type entry[T any] struct {
	items     []T
	match     MatchFunc[T]
	fetchedAt time.Time
	ttl       time.Duration
	stale     bool
}

// Cache is a keyed query-result cache. The idOf function extracts the
// identity used to patch and remove individual values.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[Key]*entry[T]
	idOf    func(T) string
}

// New creates an empty cache.
func New[T any](idOf func(T) string) *Cache[T] {
	return &Cache[T]{
		entries: make(map[Key]*entry[T]),
		idOf:    idOf,
	}
}

// Put stores a freshly fetched result under key. The match predicate
// lets later writes decide whether they belong in this view.
func (c *Cache[T]) Put(key Key, items []T, match MatchFunc[T], ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry[T]{
		items:     append([]T(nil), items...),
		match:     match,
		fetchedAt: time.Now(),
		ttl:       ttl,
	}
}

// Get returns the cached result if the entry is present, unexpired, and
// has not been marked stale by a write.
func (c *Cache[T]) Get(key Key) ([]T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.stale || time.Since(e.fetchedAt) > e.ttl {
		return nil, false
	}
	return append([]T(nil), e.items...), true
}

// ApplyCreate prepends the new value to every view it matches, then
// marks those views stale.
func (c *Cache[T]) ApplyCreate(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.match == nil || !e.match(value) {
			continue
		}
		e.items = append([]T{value}, e.items...)
		e.stale = true
	}
}

// ApplyUpdate patches the value in place wherever its id appears. The
// patched views stay servable; views named in also are invalidated
// outright, and callers pass the old and new scope keys when an update
// moves a value between views.
func (c *Cache[T]) ApplyUpdate(value T, also ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.idOf(value)
	for _, e := range c.entries {
		for i := range e.items {
			if c.idOf(e.items[i]) == id {
				e.items[i] = value
				break
			}
		}
	}
	for _, key := range also {
		if e, ok := c.entries[key]; ok {
			e.stale = true
		}
	}
}

// ApplyDelete removes the value from every view holding it. The views
// stay servable; a gone value needs no re-ordering from the store.
func (c *Cache[T]) ApplyDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		for i := range e.items {
			if c.idOf(e.items[i]) == id {
				e.items = append(e.items[:i], e.items[i+1:]...)
				break
			}
		}
	}
}

// Invalidate marks the named views stale without touching their data.
func (c *Cache[T]) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			e.stale = true
		}
	}
}

// InvalidateUser marks every view belonging to a user stale. Backup
// import uses this after rewriting the user's data wholesale.
func (c *Cache[T]) InvalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if key.UserID == userID {
			e.stale = true
		}
	}
}
