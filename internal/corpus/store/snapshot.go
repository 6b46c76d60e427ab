package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
)

// Snapshot is an immutable in-memory copy of the reading catalog.
type Snapshot struct {
	byValue map[string][]corpus.ReadingID
	bySign  map[corpus.SignID][]corpus.ReadingID
	signOf  map[string][]corpus.SignID
	size    int
}

// NewSnapshot indexes entries by value and by sign.
func NewSnapshot(entries []corpus.CatalogEntry) *Snapshot {
	s := &Snapshot{
		byValue: make(map[string][]corpus.ReadingID),
		bySign:  make(map[corpus.SignID][]corpus.ReadingID),
		signOf:  make(map[string][]corpus.SignID),
		size:    len(entries),
	}
	for _, e := range entries {
		s.byValue[e.Value] = append(s.byValue[e.Value], e.Reading)
		s.bySign[e.Sign] = append(s.bySign[e.Sign], e.Reading)
		s.signOf[e.Value] = append(s.signOf[e.Value], e.Sign)
	}
	return s
}

func (s *Snapshot) ResolveLiteral(_ context.Context, values []string) ([]corpus.ReadingID, error) {
	set := corpus.NewReadingSet()
	for _, v := range values {
		for _, id := range s.byValue[v] {
			set[id] = struct{}{}
		}
	}
	return set.Sorted(), nil
}

func (s *Snapshot) ResolveAlternates(_ context.Context, values []string) ([]corpus.ReadingID, error) {
	set := corpus.NewReadingSet()
	for _, v := range values {
		for _, sign := range s.signOf[v] {
			for _, id := range s.bySign[sign] {
				set[id] = struct{}{}
			}
		}
	}
	return set.Sorted(), nil
}

// Resident reports that lookups never touch the database.
func (s *Snapshot) Resident() bool { return true }

// Len returns the number of catalog entries in the snapshot.
func (s *Snapshot) Len() int {
	return s.size
}

// CachedCatalog serves lookups from a Snapshot that can be swapped atomically
// while searches are running.
type CachedCatalog struct {
	source  *Store
	current atomic.Pointer[Snapshot]
	logger  *slog.Logger
}

// NewCachedCatalog loads the initial snapshot from source.
func NewCachedCatalog(ctx context.Context, source *Store) (*CachedCatalog, error) {
	c := &CachedCatalog{
		source: source,
		logger: slog.Default().With("component", "catalog-cache"),
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the snapshot with the current catalog contents.
func (c *CachedCatalog) Reload(ctx context.Context) error {
	entries, err := c.source.CatalogEntries(ctx)
	if err != nil {
		return fmt.Errorf("reloading catalog: %w", err)
	}
	snap := NewSnapshot(entries)
	c.current.Store(snap)
	c.logger.Info("catalog snapshot loaded", "entries", snap.Len())
	return nil
}

func (c *CachedCatalog) Resident() bool { return true }

// Len returns the number of entries in the current snapshot.
func (c *CachedCatalog) Len() int {
	return c.current.Load().Len()
}

func (c *CachedCatalog) ResolveLiteral(ctx context.Context, values []string) ([]corpus.ReadingID, error) {
	return c.current.Load().ResolveLiteral(ctx, values)
}

func (c *CachedCatalog) ResolveAlternates(ctx context.Context, values []string) ([]corpus.ReadingID, error) {
	return c.current.Load().ResolveAlternates(ctx, values)
}
