// Package handler serves ranking, similarity and token statistics over HTTP
// against the engine's current corpus snapshot.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/tracing"
)

// Engine yields the corpus snapshot to serve. *indexer.Engine implements it.
type Engine interface {
	Current() *indexer.Snapshot
	Reload(ctx context.Context) (*indexer.Snapshot, error)
}

// RankResponse is the body of GET /api/v1/rank.
type RankResponse struct {
	Query       string                  `json:"query"`
	Terms       []string                `json:"terms"`
	Total       int                     `json:"total"`
	Results     []ranker.ScoredSentence `json:"results"`
	Fingerprint string                  `json:"fingerprint"`
	CacheHit    bool                    `json:"cache_hit"`
	TookUs      int64                   `json:"took_us"`
}

// SimilarityResponse is the body of GET /api/v1/similarity.
type SimilarityResponse struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// CorpusResponse is the body of GET /api/v1/corpus.
type CorpusResponse struct {
	Source       string    `json:"source"`
	Stemmer      string    `json:"stemmer"`
	Fingerprint  string    `json:"fingerprint"`
	BuiltAt      time.Time `json:"built_at"`
	BuildTimeMs  float64   `json:"build_time_ms"`
	Sentences    int       `json:"sentences"`
	Documents    int       `json:"documents"`
	Tokens       int       `json:"tokens"`
	Vocabulary   int       `json:"vocabulary"`
	IDFCacheSize int       `json:"idf_cache_size"`
}

type Handler struct {
	engine    Engine
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	ranking   config.RankingConfig
	logger    *slog.Logger
}

// New wires a handler. queryCache and collector may be nil to disable
// caching and event publishing.
func New(
	engine Engine,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	ranking config.RankingConfig,
) *Handler {
	return &Handler{
		engine:    engine,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		ranking:   ranking,
		logger:    slog.Default().With("component", "rank-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/rank", h.Rank)
	mux.HandleFunc("GET /api/v1/similarity", h.Similarity)
	mux.HandleFunc("GET /api/v1/tokens/{token}", h.Token)
	mux.HandleFunc("GET /api/v1/corpus", h.Corpus)
	mux.HandleFunc("POST /api/v1/corpus/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Rank scores every sentence against ?q= and returns the best ?top=.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "rank", middleware.GetRequestID(r.Context()))
	defer func() {
		span.End()
		span.LogTo(logger.FromContext(ctx))
	}()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if err := h.checkText("q", query); err != nil {
		h.metrics.RankQueriesTotal.WithLabelValues("error").Inc()
		h.writeAppError(w, err)
		return
	}
	top, err := h.parseTop(r.URL.Query().Get("top"))
	if err != nil {
		h.metrics.RankQueriesTotal.WithLabelValues("error").Inc()
		h.writeAppError(w, err)
		return
	}

	snap := h.engine.Current()
	rk := ranker.New(snap.Corpus)
	terms := rk.Terms(query)
	span.SetAttr("terms", len(terms))
	span.SetAttr("top", top)

	var results []ranker.ScoredSentence
	cacheHit := false
	cacheStatus := "disabled"

	score := func() ([]ranker.ScoredSentence, error) {
		_, scoreSpan := tracing.StartChildSpan(ctx, "score")
		defer scoreSpan.End()
		out := rk.Rank(query, top)
		scoreSpan.SetAttr("sentences", snap.Corpus.Len())
		scoreSpan.SetAttr("matches", len(out))
		return out, nil
	}

	switch {
	case len(terms) == 0:
		results = []ranker.ScoredSentence{}
	case h.cache != nil:
		cacheCtx, cacheSpan := tracing.StartChildSpan(ctx, "cache")
		key := cache.Key(snap.Fingerprint, terms, top)
		results, cacheHit, err = h.cache.GetOrCompute(cacheCtx, key, score)
		cacheSpan.SetAttr("hit", cacheHit)
		cacheSpan.End()
		if cacheHit {
			cacheStatus = "hit"
			h.metrics.CacheHitsTotal.Inc()
		} else {
			cacheStatus = "miss"
			h.metrics.CacheMissesTotal.Inc()
		}
	default:
		results, err = score()
	}
	if err != nil {
		h.metrics.RankQueriesTotal.WithLabelValues("error").Inc()
		log.Error("rank failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "rank failed")
		return
	}

	took := time.Since(start)
	resultType := cacheStatus
	if len(results) == 0 {
		resultType = "zero_result"
	}
	h.metrics.RankQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.RankLatency.WithLabelValues(cacheStatus).Observe(took.Seconds())
	h.metrics.RankResultsCount.Observe(float64(len(results)))
	h.metrics.IDFCacheSize.Set(float64(snap.Corpus.IDFCacheSize()))

	log.Info("rank completed",
		"query", query,
		"terms", len(terms),
		"returned", len(results),
		"cache", cacheStatus,
		"latency_us", took.Microseconds(),
	)

	var topScore float64
	if len(results) > 0 {
		topScore = results[0].Score
	}
	h.track(ctx, analytics.RankEvent{
		Type:        analytics.EventRank,
		Query:       query,
		Terms:       terms,
		TopN:        top,
		Returned:    len(results),
		TopScore:    topScore,
		LatencyUs:   took.Microseconds(),
		CacheHit:    cacheHit,
		Fingerprint: snap.Fingerprint,
	})

	h.writeJSON(w, http.StatusOK, RankResponse{
		Query:       query,
		Terms:       terms,
		Total:       len(results),
		Results:     results,
		Fingerprint: snap.Fingerprint,
		CacheHit:    cacheHit,
		TookUs:      took.Microseconds(),
	})
}

// Similarity returns the TF-IDF cosine of ?a= and ?b=.
func (h *Handler) Similarity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if err := h.checkText("a", a); err != nil {
		h.writeAppError(w, err)
		return
	}
	if err := h.checkText("b", b); err != nil {
		h.writeAppError(w, err)
		return
	}

	snap := h.engine.Current()
	score := ranker.New(snap.Corpus).Similarity(a, b)
	h.metrics.SimilarityTotal.Inc()

	h.track(r.Context(), analytics.RankEvent{
		Type:        analytics.EventSimilarity,
		Query:       a + " | " + b,
		TopScore:    score,
		LatencyUs:   time.Since(start).Microseconds(),
		Fingerprint: snap.Fingerprint,
	})
	h.writeJSON(w, http.StatusOK, SimilarityResponse{A: a, B: b, Score: score})
}

// Token reports whole-text TF and corpus IDF for one token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if err := h.checkText("token", token); err != nil {
		h.writeAppError(w, err)
		return
	}
	corpus := h.engine.Current().Corpus
	stats := corpus.TokenStats(token)
	h.metrics.IDFCacheSize.Set(float64(corpus.IDFCacheSize()))
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Corpus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, describe(h.engine.Current()))
}

// Reload rebuilds the corpus from its source and swaps it in.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Reload(r.Context())
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		logger.FromContext(r.Context()).Error("corpus reload failed", "error", err, "status_code", status)
		h.writeError(w, status, "corpus reload failed: "+apperrors.Message(err))
		return
	}
	h.writeJSON(w, http.StatusOK, describe(snap))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeAppError(w, apperrors.New(apperrors.ErrCacheDisabled, http.StatusNotImplemented, "caching is disabled"))
		return
	}
	stats := h.cache.Stats()
	var hitRate float64
	if total := stats.Hits + stats.Misses; total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"errors":   stats.Errors,
		"breaker":  stats.Breaker,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeAppError(w, apperrors.New(apperrors.ErrCacheDisabled, http.StatusNotImplemented, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func describe(snap *indexer.Snapshot) CorpusResponse {
	stats := snap.Corpus.Stats()
	return CorpusResponse{
		Source:       snap.Source,
		Stemmer:      snap.Stemmer,
		Fingerprint:  snap.Fingerprint,
		BuiltAt:      snap.BuiltAt,
		BuildTimeMs:  float64(snap.BuildTime.Microseconds()) / 1000,
		Sentences:    stats.Sentences,
		Documents:    stats.Sentences,
		Tokens:       stats.Tokens,
		Vocabulary:   stats.Vocabulary,
		IDFCacheSize: stats.IDFCacheSize,
	}
}

// checkText rejects a missing parameter or one longer than MaxQueryLength
// runes.
func (h *Handler) checkText(name, value string) error {
	if value == "" {
		return apperrors.Invalid("query parameter '%s' is required", name)
	}
	if limit := h.ranking.MaxQueryLength; limit > 0 && utf8.RuneCountInString(value) > limit {
		return apperrors.Invalid("'%s' must be at most %d characters", name, limit)
	}
	return nil
}

// parseTop resolves ?top=. Absent means DefaultTopN; 0 means every match.
// Either way the result never exceeds MaxTopN when that is set.
func (h *Handler) parseTop(raw string) (int, error) {
	top := h.ranking.DefaultTopN
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, apperrors.Invalid("top must be a non-negative integer")
		}
		top = n
	}
	if limit := h.ranking.MaxTopN; limit > 0 && (top == 0 || top > limit) {
		top = limit
	}
	return top, nil
}

func (h *Handler) track(ctx context.Context, event analytics.RankEvent) {
	if h.collector == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.GetRequestID(ctx)
	h.collector.Track(event)
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.writeError(w, appErr.StatusCode, appErr.Message)
		return
	}
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.Message(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
