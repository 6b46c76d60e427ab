package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/kafka"
)

const topQueries = 10

type AggregatedStats struct {
	TotalSearches         int64            `json:"total_searches"`
	TotalCounts           int64            `json:"total_counts"`
	CacheHits             int64            `json:"cache_hits"`
	CacheMisses           int64            `json:"cache_misses"`
	ZeroResultCount       int64            `json:"zero_result_count"`
	FailedCount           int64            `json:"failed_count"`
	ByMode                map[string]int64 `json:"by_mode"`
	ByOutcome             map[string]int64 `json:"by_outcome"`
	AvgLatencyMs          float64          `json:"avg_latency_ms"`
	P50LatencyMs          int64            `json:"p50_latency_ms"`
	P95LatencyMs          int64            `json:"p95_latency_ms"`
	P99LatencyMs          int64            `json:"p99_latency_ms"`
	AvgCandidateDocuments float64          `json:"avg_candidate_documents"`
	TopQueries            []QueryCount     `json:"top_queries"`
	ZeroResultQueries     []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute      float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds search events into running statistics. Latency
// percentiles cover the most recent window of events only.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	totalCounts       int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	failed            int64
	executed          int64
	candidateDocs     int64
	sinceStart        int64
	byMode            map[string]int64
	byOutcome         map[string]int64
	latencies         []int64
	next              int
	window            int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator(window int) *Aggregator {
	if window <= 0 {
		window = 10000
	}
	return &Aggregator{
		byMode:            make(map[string]int64),
		byOutcome:         make(map[string]int64),
		latencies:         make([]int64, 0, window),
		window:            window,
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts agg to a Kafka consumer. Undecodable messages are
// logged and skipped so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sinceStart++
	if event.Type == EventCount {
		a.totalCounts++
	} else {
		a.totalSearches++
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	outcome := event.Outcome
	if outcome == "" {
		outcome = "ok"
	}
	a.byOutcome[outcome]++
	if event.Mode != "" {
		a.byMode[event.Mode]++
	}
	a.queryCounts[event.Query]++

	if event.Failed() {
		a.failed++
		return
	}
	if event.Total == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
	if !event.CacheHit {
		a.executed++
		a.candidateDocs += int64(event.CandidateDocuments)
	}
	if len(a.latencies) < a.window {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
	}
	a.next = (a.next + 1) % a.window
}

// Restore seeds the counters from a previously saved snapshot. The latency
// window starts empty.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches += s.TotalSearches
	a.totalCounts += s.TotalCounts
	a.cacheHits += s.CacheHits
	a.cacheMisses += s.CacheMisses
	a.zeroResults += s.ZeroResultCount
	a.failed += s.FailedCount
	for mode, n := range s.ByMode {
		a.byMode[mode] += n
	}
	for outcome, n := range s.ByOutcome {
		a.byOutcome[outcome] += n
	}
	for _, q := range s.TopQueries {
		a.queryCounts[q.Query] += q.Count
	}
	for _, q := range s.ZeroResultQueries {
		a.zeroResultQueries[q.Query] += q.Count
	}
	a.logger.Info("analytics restored from snapshot", "total_searches", s.TotalSearches)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches,
		TotalCounts:       a.totalCounts,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		FailedCount:       a.failed,
		ByMode:            copyCounts(a.byMode),
		ByOutcome:         copyCounts(a.byOutcome),
		TopQueries:        topN(a.queryCounts, topQueries),
		ZeroResultQueries: topN(a.zeroResultQueries, topQueries),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if a.executed > 0 {
		stats.AvgCandidateDocuments = float64(a.candidateDocs) / float64(a.executed)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.sinceStart) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n highest counts, ties broken by query text.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
