// Package propagation bridges raw catalog entries and the analytic theory:
// an element cache of initialized propagation records, and a worker pool that
// fans per-object propagation and frame transformation out across goroutines.
package propagation

import (
	"container/list"
	"fmt"

	"github.com/sprett/sat-tracker/internal/catalog"
	"github.com/sprett/sat-tracker/internal/sgp4"
	"github.com/sprett/sat-tracker/internal/tle"
)

// DefaultCacheCapacity bounds the element cache when no capacity is
// configured.
const DefaultCacheCapacity = 65536

// ElementCache maps catalog identities to initialized propagation records so
// element sets are parsed and initialized once, not once per batch. An entry
// is keyed by identity and invalidated by its line text: when an identity
// reappears with different lines, the new element set supersedes the old one.
//
// The cache is owned by the engine's actor goroutine and is not safe for
// concurrent use.
type ElementCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type cachedElements struct {
	identity string
	line1    string
	line2    string
	record   *sgp4.Record
}

// NewElementCache creates a cache bounded to capacity identities.
// capacity <= 0 selects DefaultCacheCapacity.
func NewElementCache(capacity int) *ElementCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &ElementCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// GetOrParse returns the propagation record for a catalog entry, parsing and
// initializing it on a miss. A hit requires both lines to match exactly;
// changed lines supersede the cached record. Parse and initialization
// failures are returned without disturbing any cached record for the
// identity.
func (c *ElementCache) GetOrParse(e catalog.Entry) (*sgp4.Record, error) {
	if el, ok := c.entries[e.Identity]; ok {
		ce := el.Value.(*cachedElements)
		if ce.line1 == e.Line1 && ce.line2 == e.Line2 {
			c.order.MoveToFront(el)
			return ce.record, nil
		}
	}

	parsed, err := tle.ParseLines(e.Line1, e.Line2)
	if err != nil {
		return nil, err
	}
	rec, err := sgp4.NewRecord(elementsFromEntry(parsed))
	if err != nil {
		return nil, fmt.Errorf("initializing element set %d: %w", parsed.CatalogNumber, err)
	}

	ce := &cachedElements{
		identity: e.Identity,
		line1:    e.Line1,
		line2:    e.Line2,
		record:   rec,
	}
	if el, ok := c.entries[e.Identity]; ok {
		el.Value = ce
		c.order.MoveToFront(el)
	} else {
		c.entries[e.Identity] = c.order.PushFront(ce)
		c.evict()
	}
	return rec, nil
}

// Len returns the number of cached identities.
func (c *ElementCache) Len() int { return len(c.entries) }

func (c *ElementCache) evict() {
	for len(c.entries) > c.capacity {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.order.Remove(back)
		delete(c.entries, back.Value.(*cachedElements).identity)
	}
}

func elementsFromEntry(e *tle.Entry) sgp4.Elements {
	return sgp4.Elements{
		SatNum:         e.CatalogNumber,
		EpochYear:      e.EpochYear,
		EpochDays:      e.EpochDays,
		NDot:           e.MeanMotionDot,
		NDDot:          e.MeanMotionDDot,
		BStar:          e.BStar,
		InclinationDeg: e.InclinationDeg,
		RAANDeg:        e.RAANDeg,
		Eccentricity:   e.Eccentricity,
		ArgPerigeeDeg:  e.ArgPerigeeDeg,
		MeanAnomalyDeg: e.MeanAnomalyDeg,
		MeanMotion:     e.MeanMotion,
	}
}
