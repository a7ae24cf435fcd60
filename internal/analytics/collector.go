package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/kafka"
)

// BatchPublisher writes events to the bus. *kafka.Producer implements it.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events and publishes them in batches, either when
// batchSize events are pending or every flushInterval. Track never blocks:
// events are dropped when the buffer is full or the collector is closed.
type Collector struct {
	producer      BatchPublisher
	mu            sync.RWMutex
	closed        bool
	eventCh       chan RankEvent
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	published     atomic.Int64
	dropped       atomic.Int64
	onOutcome     func(outcome string, n int)
}

func NewCollector(producer BatchPublisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer:      producer,
		eventCh:       make(chan RankEvent, bufferSize),
		batchSize:     100,
		flushInterval: time.Second,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// OnOutcome registers fn to observe published and dropped counts, e.g. for
// metrics. Call before Start.
func (c *Collector) OnOutcome(fn func(outcome string, n int)) {
	c.onOutcome = fn
}

// Start launches the publish loop. It ends when ctx is cancelled or Close is
// called, flushing what is buffered either way.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(context.Background(), batch)
				return
			}
			batch = append(batch, kafka.Event{Key: event.Fingerprint, Value: event})
			if len(batch) >= c.batchSize {
				batch = c.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			batch = c.drain(batch)
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.flush(flushCtx, batch)
			cancel()
			return
		}
	}
}

// Track queues an event for publishing. Events tracked after Close are
// counted as dropped.
func (c *Collector) Track(event RankEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		c.report("dropped", 1)
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.report("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. It is safe to
// call more than once.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

// Counts returns how many events were published and dropped.
func (c *Collector) Counts() (published, dropped int64) {
	return c.published.Load(), c.dropped.Load()
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, kafka.Event{Key: event.Fingerprint, Value: event})
		default:
			return batch
		}
	}
}

// flush publishes batch and returns an empty slice to refill. A failed
// batch is dropped: rank events are telemetry, not data.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.dropped.Add(int64(len(batch)))
		c.report("dropped", len(batch))
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
	} else {
		c.published.Add(int64(len(batch)))
		c.report("published", len(batch))
		c.logger.Debug("analytics batch published", "events", len(batch))
	}
	return make([]kafka.Event, 0, c.batchSize)
}

func (c *Collector) report(outcome string, n int) {
	if c.onOutcome != nil {
		c.onOutcome(outcome, n)
	}
}
