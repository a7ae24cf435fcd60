// Package kafka carries the system's two event streams over segmentio/kafka-go:
// rank events from the ranker to analytics, and corpus-updated notices from
// ingestion to every ranker replica. Values travel as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/config"
)

// Event is one message to publish. Key picks the partition, so events with
// the same key (a corpus name or fingerprint) stay ordered.
type Event struct {
	Key   string
	Value any
}

var jsonHeader = kafka.Header{Key: "content-type", Value: []byte("application/json")}

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

type ProducerOption func(*kafka.Writer)

// Durable waits for every in-sync replica to acknowledge. Corpus updates use
// it; a lost rank event only skews analytics.
func Durable() ProducerOption {
	return func(w *kafka.Writer) { w.RequiredAcks = kafka.RequireAll }
}

func NewProducer(cfg config.KafkaConfig, topic string, opts ...ProducerOption) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return &Producer{
		writer: w,
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch writes events in one call. Nothing is written if any value
// fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := encode(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing %d message(s) to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("published", "messages", len(msgs))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(events []Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding event %q: %w", e.Key, err)
		}
		msgs[i] = kafka.Message{
			Key:     []byte(e.Key),
			Value:   value,
			Headers: []kafka.Header{jsonHeader},
		}
	}
	return msgs, nil
}
