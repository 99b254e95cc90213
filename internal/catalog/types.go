// Package catalog supplies the engine's input: immutable lists of raw
// two-line element text tagged with an identity and a category. Catalogs are
// replaced wholesale on refresh — never patched.
package catalog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Entry is one raw element set as delivered by a catalog source. The engine
// treats the line text as opaque identity material: any change to either line
// is a different element set.
type Entry struct {
	Identity string
	Category string
	Line1    string
	Line2    string
}

// Catalog is a complete snapshot from a source. Immutable after construction.
type Catalog struct {
	Source    string
	FetchedAt time.Time
	Entries   []Entry
}

// Store provides thread-safe access to the current catalog snapshot.
type Store struct {
	catalog atomic.Pointer[Catalog]
	mu      sync.Mutex // serializes refresh operations
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Set atomically replaces the current catalog.
func (s *Store) Set(c *Catalog) {
	s.catalog.Store(c)
}

// AgeSeconds returns the age of the current catalog in seconds, or -1 when
// none is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.FetchedAt).Seconds()
}

// Lock acquires the refresh mutex so only one fetch runs at a time.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the refresh mutex.
func (s *Store) Unlock() { s.mu.Unlock() }
