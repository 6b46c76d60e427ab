// Package resolver maps expanded query slots to the reading identifiers the
// catalog knows for them.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/wildcard"
)

// Catalog is the read-only reading lookup the resolver depends on. Values are
// compared exactly, case and diacritics included.
type Catalog interface {
	ResolveLiteral(ctx context.Context, values []string) ([]corpus.ReadingID, error)
	// ResolveAlternates returns every reading sharing a sign with any of
	// values.
	ResolveAlternates(ctx context.Context, values []string) ([]corpus.ReadingID, error)
}

type Resolver struct {
	catalog     Catalog
	concurrency int
	logger      *slog.Logger
}

func New(catalog Catalog, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Resolver{
		catalog:     catalog,
		concurrency: concurrency,
		logger:      slog.Default().With("component", "resolver"),
	}
}

// Resolve resolves every slot concurrently. The result is positionally
// aligned with slots. An empty set is a valid result for a slot.
func (r *Resolver) Resolve(ctx context.Context, slots []wildcard.Expansion) ([]corpus.ReadingSet, error) {
	out := make([]corpus.ReadingSet, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, slot := range slots {
		g.Go(func() error {
			set, err := r.ResolveSlot(gctx, slot)
			if err != nil {
				return err
			}
			out[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveSlot resolves a single expansion.
func (r *Resolver) ResolveSlot(ctx context.Context, slot wildcard.Expansion) (corpus.ReadingSet, error) {
	if len(slot.Candidates) == 0 {
		return corpus.NewReadingSet(), nil
	}
	lookup := r.catalog.ResolveLiteral
	if slot.Alternate {
		lookup = r.catalog.ResolveAlternates
	}
	ids, err := lookup(ctx, slot.Candidates)
	if err != nil {
		return nil, fmt.Errorf("resolving %d candidates: %w", len(slot.Candidates), err)
	}
	if len(ids) == 0 {
		r.logger.Debug("slot resolved to no readings",
			"candidates", len(slot.Candidates),
			"alternate", slot.Alternate,
		)
	}
	return corpus.NewReadingSet(ids...), nil
}
