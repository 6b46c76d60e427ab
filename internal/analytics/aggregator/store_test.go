package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus/store"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client, err := sqlite.New(config.SQLiteConfig{Path: sqlite.MemoryPath, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	s := NewStore(client.DB, store.SQLite)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestLatestSnapshotEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("LatestSnapshot() = %+v, want nil", got)
	}
}

func TestSaveAndListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)
	for i := int64(1); i <= 3; i++ {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if err := s.SaveSnapshot(ctx, analytics.AggregatedStats{TotalSearches: i}); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}

	list, err := s.ListSnapshots(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].TotalSearches != 3 || list[1].TotalSearches != 2 {
		t.Errorf("ListSnapshots(2) = %+v", list)
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.TotalSearches != 3 {
		t.Errorf("LatestSnapshot() = %+v", latest)
	}
}

func TestListSkipsCorruptRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO analytics_snapshots (captured_at, data) VALUES (?, ?)`, 5, "{not json"); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.UnixMilli(1) }
	if err := s.SaveSnapshot(ctx, analytics.AggregatedStats{TotalSearches: 7}); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListSnapshots(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].TotalSearches != 7 {
		t.Errorf("ListSnapshots() = %+v", list)
	}
}

func TestRestoreSeedsAggregator(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SaveSnapshot(ctx, analytics.AggregatedStats{
		TotalSearches: 4,
		ByMode:        map[string]int64{"strict": 4},
		TopQueries:    []analytics.QueryCount{{Query: "a-na", Count: 4}},
	}); err != nil {
		t.Fatal(err)
	}

	agg := analytics.NewAggregator(10)
	if err := s.Restore(ctx, agg); err != nil {
		t.Fatal(err)
	}
	agg.Record(analytics.SearchEvent{Type: analytics.EventSearch, Query: "a-na", Mode: "strict", Total: 1, Outcome: "ok"})

	stats := agg.Stats()
	if stats.TotalSearches != 5 {
		t.Errorf("TotalSearches = %d, want 5", stats.TotalSearches)
	}
	if stats.ByMode["strict"] != 5 {
		t.Errorf("ByMode[strict] = %d, want 5", stats.ByMode["strict"])
	}
	if len(stats.TopQueries) != 1 || stats.TopQueries[0].Count != 5 {
		t.Errorf("TopQueries = %+v", stats.TopQueries)
	}
}

func TestPeriodicSaveTakesFinalSnapshot(t *testing.T) {
	s := newTestStore(t)
	agg := analytics.NewAggregator(10)
	agg.Record(analytics.SearchEvent{Type: analytics.EventCount, Query: "ki", Total: 2, Outcome: "ok"})

	ctx, cancel := context.WithCancel(context.Background())
	done := s.StartPeriodicSave(ctx, agg, time.Hour)
	cancel()
	<-done

	latest, err := s.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.TotalCounts != 1 {
		t.Errorf("final snapshot = %+v", latest)
	}
}
