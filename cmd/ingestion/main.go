// Command ingestion starts the corpus ingestion HTTP service.
//
// PUT /api/v1/corpora/{name} validates a plain-text corpus, stores it in
// PostgreSQL one row per line, and announces the change on Kafka so rankers
// reload. GET /api/v1/corpora/{name} reports what is stored.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/server"
)

// main loads configuration, connects to PostgreSQL, creates the Kafka producer,
// wires up the ingestion handler, and starts the HTTP server. Graceful shutdown
// is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx, ingestion.Schema); err != nil {
		slog.Error("failed to migrate corpus schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusUpdates, kafka.Durable())
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.CorpusUpdates)

	pub := publisher.New(db, producer)
	h := handler.New(pub)

	checker := health.NewChecker("ingestion")
	checker.Register("postgres", health.Ping(false, db.Ping))

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.Serve(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if err := server.ListenAndRun(ctx, server.New(cfg.Server, chain), cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("ingestion service stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
