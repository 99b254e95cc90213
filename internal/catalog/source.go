package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sprett/sat-tracker/internal/metrics"
)

// Source binds the remote fetcher, the disk cache, and the store into one
// refresh path. Each successful refresh replaces the store's snapshot
// wholesale and notifies the registered consumer.
type Source struct {
	fetcher    *Fetcher
	cache      *DiskCache
	store      *Store
	categories []string
	logger     *slog.Logger
	onReplace  func(*Catalog)
}

// NewSource creates a Source. cache may be nil to disable the disk cache.
// onReplace is invoked with every new snapshot; nil is allowed.
func NewSource(fetcher *Fetcher, cache *DiskCache, store *Store,
	categories []string, logger *slog.Logger, onReplace func(*Catalog)) *Source {
	return &Source{
		fetcher:    fetcher,
		cache:      cache,
		store:      store,
		categories: categories,
		logger:     logger,
		onReplace:  onReplace,
	}
}

// LoadCached tries to seed the store from fresh disk-cached catalog text.
// Returns true when a snapshot was loaded.
func (s *Source) LoadCached() bool {
	if s.cache == nil {
		return false
	}
	key := Key(s.categories)
	data, ts, err := s.cache.LoadFresh(key)
	if err != nil {
		s.logger.Info("no fresh catalog cache", "key", key, "error", err)
		return false
	}

	entries := EntriesFromRaw(data, "cached", s.logger)
	if len(entries) == 0 {
		s.logger.Warn("cached catalog text yielded no entries", "key", key)
		return false
	}

	cat := &Catalog{Source: "cache", FetchedAt: ts, Entries: entries}
	s.replace(cat)
	s.logger.Info("catalog loaded from cache",
		"entries", len(entries),
		"cached_at", ts.UTC().Format(time.RFC3339),
	)
	return true
}

// Refresh fetches all configured categories from the remote provider, writes
// the raw text to the disk cache, and replaces the store's snapshot.
func (s *Source) Refresh(ctx context.Context) error {
	s.store.Lock()
	defer s.store.Unlock()

	var raw []byte
	var entries []Entry
	for _, cat := range s.categories {
		body, err := s.fetcher.FetchRaw(ctx, cat)
		if err != nil {
			s.logger.Warn("catalog category fetch failed", "category", cat, "error", err)
			continue
		}
		raw = append(raw, body...)
		if len(raw) > 0 && raw[len(raw)-1] != '\n' {
			raw = append(raw, '\n')
		}
		entries = append(entries, EntriesFromRaw(body, cat, s.logger)...)
	}
	if len(entries) == 0 {
		metrics.RecordCatalogFetch(false)
		return fmt.Errorf("no catalog entries retrieved for %d categories", len(s.categories))
	}

	fetchedAt := time.Now().UTC()
	if s.cache != nil {
		if err := s.cache.Write(Key(s.categories), raw, fetchedAt); err != nil {
			s.logger.Warn("catalog cache write failed", "error", err)
		}
	}

	cat := &Catalog{Source: "remote", FetchedAt: fetchedAt, Entries: entries}
	s.replace(cat)
	metrics.RecordCatalogFetch(true)
	s.logger.Info("catalog refreshed", "entries", len(entries), "categories", len(s.categories))
	return nil
}

// Start refreshes on the given interval until the context is canceled. When
// the store already holds a fresh snapshot the first refresh is delayed by a
// full interval.
func (s *Source) Start(ctx context.Context, interval time.Duration) {
	if s.store.Get() == nil {
		if err := s.Refresh(ctx); err != nil {
			s.logger.Error("initial catalog refresh failed", "error", err)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}

func (s *Source) replace(cat *Catalog) {
	s.store.Set(cat)
	if s.onReplace != nil {
		s.onReplace(cat)
	}
}
