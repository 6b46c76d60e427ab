package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/metrics"
)

type fakeCache struct {
	calls int
	err   error
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

type fakeCatalog struct {
	reloads int
	err     error
}

func (c *fakeCatalog) Reload(context.Context) error {
	c.reloads++
	return c.err
}

func (c *fakeCatalog) Len() int { return 42 }

// sample returns the value of the series of family name whose labels include
// label (any label when empty).
func sample(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			matched := label == ""
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					matched = true
				}
			}
			if !matched {
				continue
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTextEventsInvalidateOnly(t *testing.T) {
	for _, typ := range []Type{TextIngested, TextDeleted, VisibilityChanged} {
		t.Run(string(typ), func(t *testing.T) {
			cache, catalog := &fakeCache{}, &fakeCatalog{}
			h := NewHandler(cache, catalog, nil)
			if err := h.Handle(context.Background(), Event{Type: typ, TextID: 10}); err != nil {
				t.Fatal(err)
			}
			if cache.calls != 1 || catalog.reloads != 0 {
				t.Errorf("invalidations=%d reloads=%d", cache.calls, catalog.reloads)
			}
		})
	}
}

func TestCatalogUpdateReloadsAndInvalidates(t *testing.T) {
	cache, catalog := &fakeCache{}, &fakeCatalog{}
	reg := prometheus.NewRegistry()
	h := NewHandler(cache, catalog, metrics.NewWithRegistry(reg))
	if err := h.Handle(context.Background(), Event{Type: CatalogUpdated}); err != nil {
		t.Fatal(err)
	}
	if cache.calls != 1 || catalog.reloads != 1 {
		t.Errorf("invalidations=%d reloads=%d", cache.calls, catalog.reloads)
	}
	if got := sample(t, reg, "catalog_entries", ""); got != 42 {
		t.Errorf("catalog_entries = %v", got)
	}
	if got := sample(t, reg, "catalog_reloads_total", "ok"); got != 1 {
		t.Errorf("catalog_reloads_total{ok} = %v", got)
	}
	if got := sample(t, reg, "corpus_events_total", string(CatalogUpdated)); got != 1 {
		t.Errorf("corpus_events_total = %v", got)
	}
}

func TestFailedReloadKeepsCache(t *testing.T) {
	cache, catalog := &fakeCache{}, &fakeCatalog{err: errors.New("db down")}
	reg := prometheus.NewRegistry()
	h := NewHandler(cache, catalog, metrics.NewWithRegistry(reg))
	if err := h.Handle(context.Background(), Event{Type: CatalogUpdated}); err == nil {
		t.Fatal("expected reload error")
	}
	if cache.calls != 0 {
		t.Error("cache invalidated although the reload failed")
	}
	if got := sample(t, reg, "catalog_reloads_total", "error"); got != 1 {
		t.Errorf("catalog_reloads_total{error} = %v", got)
	}
}

func TestNilCollaborators(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	for _, typ := range []Type{TextIngested, CatalogUpdated, "bogus"} {
		if err := h.Handle(context.Background(), Event{Type: typ}); err != nil {
			t.Errorf("Handle(%s) = %v", typ, err)
		}
	}
}

func TestMessageHandler(t *testing.T) {
	cache := &fakeCache{err: errors.New("redis down")}
	handle := NewHandler(cache, nil, nil).MessageHandler()

	if err := handle(context.Background(), nil, []byte("not json")); err != nil {
		t.Errorf("garbage returned %v", err)
	}
	value, _ := json.Marshal(Event{Type: TextIngested, TextID: 3})
	if err := handle(context.Background(), []byte("3"), value); err == nil {
		t.Error("expected the invalidation error to surface")
	}
	if cache.calls != 1 {
		t.Errorf("invalidations = %d", cache.calls)
	}
}
