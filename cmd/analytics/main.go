// Command analytics runs a standalone aggregator over the search-analytics
// topic.
//
// Search services publish one event per search or count request. This
// service consumes them under its own consumer group, keeps the aggregate in
// memory and serves it at GET /api/v1/analytics, so dashboards can read
// fleet-wide numbers instead of one search instance's view.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kafkaCfg := cfg.Kafka
	kafkaCfg.ConsumerGroup += "-analytics"
	topic := cfg.Kafka.Topics.AnalyticsEvents

	agg := analytics.NewAggregator(cfg.Analytics.LatencyWindow)
	consumer := kafka.NewConsumer(kafkaCfg, topic, analytics.HandleEvent(agg))

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", topic, "group", kafkaCfg.ConsumerGroup)

	checker := health.NewChecker()
	checker.Register("kafka_consumer", func(context.Context) health.ComponentHealth {
		select {
		case <-consumerDone:
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		default:
			return health.ComponentHealth{Status: health.StatusUp}
		}
	})

	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
