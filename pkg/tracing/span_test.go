package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansInheritTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "rank", "trace-1")
	_, child := StartChildSpan(ctx, "score")
	child.SetAttr("sentences", 3)
	child.End()
	root.End()

	require.Len(t, root.Children(), 1)
	assert.Equal(t, "trace-1", child.TraceID())
	assert.Equal(t, "rank/score", child.Path())
	assert.Same(t, root, SpanFromContext(ctx))
	assert.GreaterOrEqual(t, root.Duration(), child.Duration())
}

func TestChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID())
	assert.Equal(t, "orphan", span.Path())
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestEndOnlyOnce(t *testing.T) {
	_, span := StartSpan(context.Background(), "rank", "t")
	assert.Zero(t, span.Duration())
	span.End()
	first := span.Duration()
	time.Sleep(2 * time.Millisecond)
	span.End()
	assert.Equal(t, first, span.Duration())
}

func TestLogToWritesTreeAtDebug(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "rank", "trace-2")
	root.SetAttr("top", 5)
	root.SetAttr("top", 10)
	_, child := StartChildSpan(ctx, "cache")
	child.SetAttr("hit", true)
	child.End()
	root.End()

	var buf bytes.Buffer
	root.LogTo(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	assert.Zero(t, buf.Len(), "spans are not logged above debug")

	root.LogTo(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=rank")
	assert.Contains(t, lines[0], "top=10")
	assert.NotContains(t, lines[0], "top=5")
	assert.Contains(t, lines[1], "span=rank/cache")
	assert.Contains(t, lines[1], "trace_id=trace-2")
	assert.Contains(t, lines[1], "hit=true")
}
