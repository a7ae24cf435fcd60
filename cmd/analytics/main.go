// Command analytics starts the standalone rank-analytics service.
//
// It consumes rank events from Kafka, aggregates them in memory (totals,
// cache hit rate, zero-result queries, latency percentiles, top queries),
// periodically snapshots the aggregate to PostgreSQL when enabled, and
// serves GET /api/v1/analytics and GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/server"
)

// main wires the Kafka consumer into the aggregator, optionally attaches the
// snapshot store, and serves the HTTP API until SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.Serve(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}
	checker := health.NewChecker("analytics")

	agg := analytics.NewAggregator()
	handleEvent := analytics.HandleEvent(agg)
	events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RankEvents,
		func(ctx context.Context, key, value []byte) error {
			m.RankEventsTotal.WithLabelValues("consumed").Inc()
			return handleEvent(ctx, key, value)
		})
	defer events.Close()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := events.Start(ctx); err != nil {
			slog.Error("rank event consumer error", "error", err)
		}
	}()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case <-consumerDone:
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
		}
	})
	slog.Info("rank event consumer started", "topic", cfg.Kafka.Topics.RankEvents)

	var history analytics.SnapshotLister
	var snapshotsDone <-chan struct{}
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx, aggregator.Schema); err != nil {
			slog.Error("failed to migrate analytics schema", "error", err)
			os.Exit(1)
		}
		store := aggregator.NewStore(pg.DB)
		history = store
		snapshotsDone = store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		checker.Register("postgres", health.Ping(true, pg.Ping))
	}

	h := analytics.NewHandler(agg, history)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", h.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins...))(chain)
	chain = middleware.RequestID(chain)

	if err := server.ListenAndRun(ctx, server.New(cfg.Server, chain), cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("analytics service stopped with error", "error", err)
		os.Exit(1)
	}

	if snapshotsDone != nil {
		<-snapshotsDone
	}
	slog.Info("analytics service stopped")
}
