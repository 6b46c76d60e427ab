// Package cache keeps search results in Redis, keyed by the canonical form of
// the request, with singleflight protection against concurrent misses.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/redis"
)

const keyPrefix = "translit:search:"

// Kind separates cached page results from cached counts.
type Kind string

const (
	KindSearch Kind = "search"
	KindCount  Kind = "count"
)

// Backend is the key-value store behind the cache; *pkgredis.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, kind Kind, req executor.Request) (*executor.SearchResult, bool) {
	key := BuildKey(kind, req)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "kind", kind, "query", req.Query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, kind Kind, req executor.Request, result *executor.SearchResult) {
	key := BuildKey(kind, req)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for req or computes and stores it.
// Concurrent misses on one key share a single computation. Errors are never
// cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	kind Kind,
	req executor.Request,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, kind, req); ok {
		return result, true, nil
	}
	key := BuildKey(kind, req)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, kind, req, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey hashes the canonical form of req. Page and limit only matter for
// page results.
func BuildKey(kind Kind, req executor.Request) string {
	raw := fmt.Sprintf("%s|%s|mode=%s|sup=%t|caller=%s",
		kind, CanonicalQuery(req.Query), req.Mode, req.IncludeSuperfluous, req.Caller)
	if kind == KindSearch {
		raw += fmt.Sprintf("|page=%d|limit=%d", req.Page, req.Limit)
	}
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// CanonicalQuery rewrites query so that requests with the same match set
// share a key: whitespace is collapsed, empty phrases dropped, and phrases
// sorted, since phrase order does not change the result. Readings are case
// sensitive, so case is kept.
func CanonicalQuery(query string) string {
	var phrases []string
	for _, raw := range strings.Split(query, parser.PhraseSeparator) {
		p := strings.TrimSpace(raw)
		negated := strings.HasPrefix(p, parser.NegationPrefix)
		if negated {
			p = strings.TrimSpace(strings.TrimPrefix(p, parser.NegationPrefix))
		}
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		if negated {
			p = parser.NegationPrefix + p
		}
		phrases = append(phrases, p)
	}
	sort.Strings(phrases)
	return strings.Join(phrases, parser.PhraseSeparator)
}
