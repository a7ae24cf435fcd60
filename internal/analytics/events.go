// Package analytics tracks ranking traffic: the ranker publishes events to
// Kafka through a Collector and the analytics service aggregates them.
package analytics

import "time"

type EventType string

const (
	EventRank       EventType = "rank"
	EventSimilarity EventType = "similarity"
)

// RankEvent describes one served request.
type RankEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms,omitempty"`
	TopN        int       `json:"top_n"`
	Returned    int       `json:"returned"`
	TopScore    float64   `json:"top_score"`
	LatencyUs   int64     `json:"latency_us"`
	CacheHit    bool      `json:"cache_hit"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}
