// Package tracing times the stages of a request (rank, cache, score) as a
// tree of spans carried in the context and dumps the tree to the request
// logger at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

type Span struct {
	name    string
	traceID string
	parent  *Span
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	attrs    []slog.Attr
	children []*Span
}

// StartSpan opens a root span for traceID, usually the request ID.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. Without a parent it is a
// root with no trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	s := &Span{name: name, parent: parent, start: time.Now()}
	if parent != nil {
		s.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the span's duration. Only the first call counts.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.ended = true
		s.duration = time.Since(s.start)
	}
}

// SetAttr records an attribute; setting a key again overwrites it.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i].Value = slog.AnyValue(value)
			return
		}
	}
	s.attrs = append(s.attrs, slog.Any(key, value))
}

func (s *Span) Name() string    { return s.name }
func (s *Span) TraceID() string { return s.traceID }

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Path is the slash-joined chain of span names from the root, e.g.
// "rank/cache".
func (s *Span) Path() string {
	if s.parent == nil {
		return s.name
	}
	return s.parent.Path() + "/" + s.name
}

// LogTo writes one debug record per span, parents before children. Nothing
// is formatted when logger has debug disabled.
func (s *Span) LogTo(logger *slog.Logger) {
	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.log(ctx, logger)
}

func (s *Span) log(ctx context.Context, logger *slog.Logger) {
	s.mu.Lock()
	attrs := make([]slog.Attr, 0, len(s.attrs)+3)
	attrs = append(attrs,
		slog.String("trace_id", s.traceID),
		slog.String("span", s.Path()),
		slog.Int64("duration_us", s.duration.Microseconds()),
	)
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.LogAttrs(ctx, slog.LevelDebug, "span", attrs...)
	for _, c := range children {
		c.log(ctx, logger)
	}
}
