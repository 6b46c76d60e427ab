// Package aggregator persists periodic snapshots of the analytics
// aggregator so counters survive restarts.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus/store"
)

const schema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	captured_at BIGINT NOT NULL,
	data        TEXT NOT NULL
)`

// Store keeps analytics snapshots in the analytics_snapshots table of the
// corpus database. Snapshots are JSON documents keyed by capture time in
// Unix milliseconds.
type Store struct {
	db      *sql.DB
	dialect store.Dialect
	logger  *slog.Logger
	now     func() time.Time
}

func NewStore(db *sql.DB, dialect store.Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "analytics-store"),
		now:     time.Now,
	}
}

// Migrate creates the snapshot table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot persists a stats snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO analytics_snapshots (captured_at, data) VALUES (%s, %s)`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2))
	if _, err := s.db.ExecContext(ctx, query, s.now().UnixMilli(), string(data)); err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"total_counts", stats.TotalCounts,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot. It returns nil, nil if no
// snapshot exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	snapshots, err := s.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// ListSnapshots returns the last limit snapshots, newest first. Corrupt rows
// are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	query := fmt.Sprintf(`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT %s`,
		s.dialect.Placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal([]byte(data), &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// Restore seeds agg from the latest snapshot, if any.
func (s *Store) Restore(ctx context.Context, agg *analytics.Aggregator) error {
	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	if latest != nil {
		agg.Restore(*latest)
	}
	return nil
}

// StartPeriodicSave snapshots agg every interval until ctx is cancelled, then
// takes a final snapshot. The returned channel closes once the final
// snapshot has been attempted.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
	return done
}
