package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Query string `json:"query"`
	Top   int    `json:"top"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"query":"cat runs","top":3}`))
	require.NoError(t, err)
	assert.Equal(t, sample{Query: "cat runs", Top: 3}, got)
}

func TestDecodeJSONInvalid(t *testing.T) {
	_, err := DecodeJSON[sample]([]byte(`{"query":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func testProducer(w messageWriter) *Producer {
	return &Producer{writer: w, topic: "rank-events", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestPublishBatchEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := testProducer(w)

	err := p.PublishBatch(context.Background(), []Event{
		{Key: "fp1", Value: sample{Query: "cat", Top: 2}},
		{Key: "fp1", Value: sample{Query: "dog", Top: 0}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "fp1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"query":"cat","top":2}`, string(w.msgs[0].Value))
	assert.Equal(t, []kafka.Header{jsonHeader}, w.msgs[1].Headers)

	require.NoError(t, p.Publish(context.Background(), Event{Key: "handbook", Value: sample{Query: "x"}}))
	assert.Len(t, w.msgs, 3)
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
}

func TestPublishBatchEncodeFailureWritesNothing(t *testing.T) {
	w := &fakeWriter{}
	err := testProducer(w).PublishBatch(context.Background(), []Event{
		{Key: "ok", Value: sample{}},
		{Key: "bad", Value: make(chan int)},
	})
	assert.ErrorContains(t, err, `encoding event "bad"`)
	assert.Empty(t, w.msgs)
}

func TestPublishWriteError(t *testing.T) {
	err := testProducer(&fakeWriter{err: errors.New("leader not available")}).
		Publish(context.Background(), Event{Key: "k", Value: 1})
	assert.ErrorContains(t, err, "writing 1 message(s) to rank-events")
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []int64
	closed    int
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		f.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestConsumerCommitsOnlyHandledMessages(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte(`{"query":"cat"}`)},
		{Offset: 2, Value: []byte(`poison`)},
		{Offset: 3, Value: []byte(`{"query":"dog"}`)},
	}}
	var seen []string
	handler := func(ctx context.Context, key, value []byte) error {
		s, err := DecodeJSON[sample](value)
		if err != nil {
			return err
		}
		seen = append(seen, s.Query)
		return nil
	}
	c := newConsumer(r, handler, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 3}, r.commits())
	assert.Equal(t, []string{"cat", "dog"}, seen)
}

func TestConsumerRetriesFetchErrors(t *testing.T) {
	r := &fakeReader{
		fetchErrs: []error{errors.New("broker down")},
		queue:     []kafka.Message{{Offset: 7, Value: []byte(`{}`)}},
	}
	c := newConsumer(r, func(context.Context, []byte, []byte) error { return nil }, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestConsumerCloseOnce(t *testing.T) {
	r := &fakeReader{}
	c := newConsumer(r, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, r.closed)
}
