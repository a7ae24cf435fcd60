// Command ranker serves TF-IDF sentence ranking over HTTP.
//
// It loads a corpus from a file, inline config or PostgreSQL, indexes it and
// answers rank, similarity and token-statistics queries. Results are cached
// in Redis when enabled, rank events are published to Kafka for the
// analytics service, and a PostgreSQL-backed corpus is reloaded whenever the
// ingestion service announces an update.
//
// Usage:
//
//	go run ./cmd/ranker [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/server"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/resilience"
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
	slog.Info("starting ranker service",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Corpus.Source,
		"stemmer", cfg.Corpus.Stemmer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.Serve(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}
	checker := health.NewChecker("ranker")

	var pg *postgres.Client
	if cfg.Corpus.Source == config.SourcePostgres || cfg.Postgres.Enabled {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		checker.Register("postgres", health.Ping(cfg.Corpus.Source != config.SourcePostgres, pg.Ping))
		slog.Info("connected to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	var querier ingestion.Querier
	if pg != nil {
		querier = pg.DB
	}
	loader, err := ingestion.NewLoader(cfg.Corpus, querier)
	if err != nil {
		slog.Error("invalid corpus source", "error", err)
		os.Exit(1)
	}
	engine, err := indexer.NewEngine(ctx, loader, cfg.Corpus.Stemmer, cfg.Corpus.LoadTimeout)
	if err != nil {
		slog.Error("failed to build corpus index", "error", err)
		os.Exit(1)
	}
	publishCorpusGauges(m, engine.Current())
	engine.OnSwap(func(old, snap *indexer.Snapshot) {
		publishCorpusGauges(m, snap)
	})
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		snap := engine.Current()
		if snap.Corpus.Len() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "corpus has no sentences"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d sentences, fingerprint %s", snap.Corpus.Len(), snap.Fingerprint),
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, rank caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("rank-cache", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     10 * time.Second,
				OnStateChange: func(name string, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			m.CircuitBreakerState.WithLabelValues("rank-cache").Set(float64(resilience.StateClosed))
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, breaker)
			checker.Register("redis", health.Ping(true, redisClient.Ping))
			slog.Info("rank cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var collector *analytics.Collector
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RankEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		collector.OnOutcome(func(outcome string, n int) {
			m.RankEventsTotal.WithLabelValues(outcome).Add(float64(n))
		})
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("rank events enabled", "topic", cfg.Kafka.Topics.RankEvents)
	}

	if cfg.Corpus.Source == config.SourcePostgres {
		// Every replica must see every update, so each gets its own group.
		kafkaCfg := cfg.Kafka
		if host, err := os.Hostname(); err == nil && kafkaCfg.ConsumerGroup != "" {
			kafkaCfg.ConsumerGroup = kafkaCfg.ConsumerGroup + "-ranker-" + host
		}
		updates := kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topics.CorpusUpdates,
			consumer.HandleCorpusUpdated(engine, cfg.Corpus.Name))
		defer updates.Close()
		go func() {
			if err := updates.Start(ctx); err != nil {
				slog.Error("corpus update consumer error", "error", err)
			}
		}()
		slog.Info("watching corpus updates", "topic", cfg.Kafka.Topics.CorpusUpdates, "corpus", cfg.Corpus.Name)
	}

	h := handler.New(engine, queryCache, collector, m, cfg.Ranking)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	if cfg.RateLimit.Enabled {
		trusted, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			slog.Error("invalid rateLimit.trustedProxies", "error", err)
			os.Exit(1)
		}
		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer limiter.Close()
		chain = middleware.RateLimit(limiter, trusted)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins...))(chain)
	chain = middleware.RequestID(chain)

	if err := server.ListenAndRun(ctx, server.New(cfg.Server, chain), cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("ranker service stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("ranker service stopped")
}

func publishCorpusGauges(m *metrics.Metrics, snap *indexer.Snapshot) {
	stats := snap.Corpus.Stats()
	m.CorpusSentences.Set(float64(stats.Sentences))
	m.CorpusVocabulary.Set(float64(stats.Vocabulary))
	m.IDFCacheSize.Set(float64(stats.IDFCacheSize))
}
