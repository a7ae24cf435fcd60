package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/kafka"
)

const (
	// latencyWindow bounds how many recent latencies feed the percentiles.
	latencyWindow = 10000
	// maxTrackedQueries bounds each per-query count map. When full, the
	// lower-count half is evicted.
	maxTrackedQueries = 10000
)

type AggregatedStats struct {
	TotalRanks        int64        `json:"total_ranks"`
	TotalSimilarity   int64        `json:"total_similarity"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	CacheHitRate      float64      `json:"cache_hit_rate"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyUs      float64      `json:"avg_latency_us"`
	P50LatencyUs      int64        `json:"p50_latency_us"`
	P95LatencyUs      int64        `json:"p95_latency_us"`
	P99LatencyUs      int64        `json:"p99_latency_us"`
	AvgTopScore       float64      `json:"avg_top_score"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	Corpora           []string     `json:"corpora"`
	Since             time.Time    `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds RankEvents into running totals. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.RWMutex
	totalRanks        int64
	totalSimilarity   int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	topScoreSum       float64
	latencies         []int64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	fingerprints      map[string]struct{}
	maxQueries        int
	startTime         time.Time
	now               func() time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		fingerprints:      make(map[string]struct{}),
		maxQueries:        maxTrackedQueries,
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka MessageHandler feeding agg. Undecodable
// messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RankEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record adds one event to the totals.
func (a *Aggregator) Record(event RankEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Fingerprint != "" {
		a.fingerprints[event.Fingerprint] = struct{}{}
	}
	a.recordLatency(event.LatencyUs)

	if event.Type == EventSimilarity {
		a.totalSimilarity++
		return
	}

	a.totalRanks++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.topScoreSum += event.TopScore
	a.countQuery(a.queryCounts, event.Query)
	if event.Returned == 0 {
		a.zeroResults++
		a.countQuery(a.zeroResultQueries, event.Query)
	}
}

// countQuery increments query in counts, first pruning counts to its busiest
// half if a new query would exceed maxQueries.
func (a *Aggregator) countQuery(counts map[string]int64, query string) {
	if _, ok := counts[query]; !ok && len(counts) >= a.maxQueries {
		keep := a.maxQueries / 2
		for _, qc := range topN(counts, len(counts))[keep:] {
			delete(counts, qc.Query)
		}
	}
	counts[query]++
}

func (a *Aggregator) recordLatency(us int64) {
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, us)
		return
	}
	a.latencies[a.latencyNext] = us
	a.latencyNext = (a.latencyNext + 1) % latencyWindow
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRanks:      a.totalRanks,
		TotalSimilarity: a.totalSimilarity,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		Since:           a.startTime.UTC(),
	}
	if lookups := a.cacheHits + a.cacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(a.cacheHits) / float64(lookups)
	}
	if a.totalRanks > 0 {
		stats.AvgTopScore = a.topScoreSum / float64(a.totalRanks)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	stats.Corpora = make([]string, 0, len(a.fingerprints))
	for fp := range a.fingerprints {
		stats.Corpora = append(stats.Corpora, fp)
	}
	sort.Strings(stats.Corpora)

	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalRanks+stats.TotalSimilarity) / elapsed
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

// topN returns the n most frequent queries, ties broken alphabetically.
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
