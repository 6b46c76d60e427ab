package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus/events"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus/store"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/rpc"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/sqlite"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"default_mode", cfg.Search.DefaultMode,
	)

	m := metrics.New()

	db, dialect, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	if cfg.Store.Migrate {
		if err := store.Migrate(ctx, db); err != nil {
			return err
		}
	}
	corpusStore := store.New(db, dialect)

	var catalog resolver.Catalog = corpusStore
	var cachedCatalog *store.CachedCatalog
	if cfg.Store.PreloadCatalog {
		cachedCatalog, err = store.NewCachedCatalog(ctx, corpusStore)
		if err != nil {
			return err
		}
		catalog = cachedCatalog
		m.CatalogEntries.Set(float64(cachedCatalog.Len()))
	}

	breaker := resilience.NewCircuitBreaker("corpus-store", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	m.CircuitBreakerState.WithLabelValues(breaker.Name()).Set(float64(resilience.StateClosed))

	exec := executor.New(executor.Deps{
		Tokens:     corpusStore,
		Catalog:    catalog,
		Visibility: corpusStore,
		Breaker:    breaker,
		Tracer:     tracing.New(cfg.Tracing),
		Metrics:    m,
	}, cfg.Search)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	agg := analytics.NewAggregator(cfg.Analytics.LatencyWindow)
	snapshots := aggregator.NewStore(db, dialect)
	if err := snapshots.Migrate(ctx); err != nil {
		return err
	}
	if err := snapshots.Restore(ctx, agg); err != nil {
		slog.Warn("analytics snapshot not restored", "error", err)
	}

	// Background workers stop when workCtx is cancelled during shutdown.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var publisher analytics.Publisher = analytics.LocalPublisher{Aggregator: agg}
	var consumers []*kafka.Consumer
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer
		consumers = append(consumers,
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg)),
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusEvents,
				events.NewHandler(cacheInvalidator(queryCache), catalogReloader(cachedCatalog), m).MessageHandler()),
		)
	}
	collector := analytics.NewCollector(publisher, cfg.Analytics)
	collector.Start(workCtx)
	for _, c := range consumers {
		go func() {
			if err := c.Start(workCtx); err != nil {
				slog.Error("kafka consumer stopped", "error", err)
			}
		}()
	}
	snapshotsDone := snapshots.StartPeriodicSave(workCtx, agg, cfg.Analytics.SnapshotInterval)

	checker := health.NewChecker()
	checker.Register("corpus_store", health.Ping(corpusStore.Ping))
	checker.Register("store_breaker", health.Breaker(breaker))
	if redisClient != nil {
		checker.Register("redis", health.Optional(redisClient.Ping))
	}

	h := handler.New(exec, queryCache, collector, m, cfg.Search)
	analyticsH := analytics.NewHandler(agg)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	limiter := middleware.NewLimiter(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
	go limiter.Sweep(workCtx, 5*time.Minute)

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RateLimit(cfg.Server.RateLimit, limiter)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer, err = metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			return err
		}
	}

	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcServer = rpc.NewServer()
		h.RegisterRPC(rpcServer)
		if err := rpcServer.Listen(cfg.RPC.Addr); err != nil {
			return err
		}
		go func() {
			if err := rpcServer.Serve(); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if rpcServer != nil {
		rpcServer.Stop()
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}
	collector.Close()
	cancelWork()
	<-snapshotsDone
	return nil
}

// openStore connects to the configured corpus database, retrying while it
// comes up.
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, store.Dialect, func(), error) {
	dialect, err := store.ParseDialect(cfg.Store.Driver)
	if err != nil {
		return nil, 0, nil, err
	}
	var db *sql.DB
	var closeDB func() error
	retry := resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Retryable: func(err error) bool {
			return dialect == store.Postgres && postgres.IsTransient(err)
		},
	}
	err = resilience.Retry(ctx, "corpus-store-connect", retry, func() error {
		switch dialect {
		case store.SQLite:
			client, err := sqlite.New(cfg.SQLite)
			if err != nil {
				return err
			}
			db, closeDB = client.DB, client.Close
		default:
			client, err := postgres.New(cfg.Postgres)
			if err != nil {
				return err
			}
			db, closeDB = client.DB, client.Close
		}
		return nil
	})
	if err != nil {
		return nil, 0, nil, fmt.Errorf("connecting to corpus store: %w", err)
	}
	slog.Info("corpus store connected", "driver", cfg.Store.Driver)
	return db, dialect, func() {
		if err := closeDB(); err != nil {
			slog.Error("closing corpus store", "error", err)
		}
	}, nil
}

// cacheInvalidator and catalogReloader keep typed nil pointers out of the
// event handler's interfaces.
func cacheInvalidator(c *cache.QueryCache) events.Invalidator {
	if c == nil {
		return nil
	}
	return c
}

func catalogReloader(c *store.CachedCatalog) events.Reloader {
	if c == nil {
		return nil
	}
	return c
}
