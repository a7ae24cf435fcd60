package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat ran\n\n  dog  \n"), 0o644))

	queries, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat ran", "dog"}, queries)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o644))
	_, err = readQueries(empty)
	assert.Error(t, err)
}

func TestTallyRecord(t *testing.T) {
	tl := newTally()
	tl.record(time.Millisecond, 200, nil)
	tl.record(time.Millisecond, 400, nil)
	tl.record(0, 0, assert.AnError)

	assert.EqualValues(t, 3, tl.total())
	assert.EqualValues(t, 1, tl.ok)
	assert.EqualValues(t, 2, tl.failed)
	assert.Len(t, tl.latencies, 2)
	assert.Equal(t, map[int]int64{200: 1, 400: 1}, tl.codes)
}

func TestTallyMerge(t *testing.T) {
	a, b := newTally(), newTally()
	a.record(2*time.Millisecond, 200, nil)
	b.record(time.Millisecond, 200, nil)
	b.record(time.Millisecond, 503, nil)
	b.ranks, b.cacheHit = 2, 1

	a.merge(b)
	assert.EqualValues(t, 2, a.ok)
	assert.EqualValues(t, 1, a.failed)
	assert.EqualValues(t, 1, a.cacheHit)
	assert.Equal(t, map[int]int64{200: 2, 503: 1}, a.codes)
	assert.Len(t, a.latencies, 3)
}

func TestRunAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/rank" {
			w.Write([]byte(`{"cache_hit":true}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	got := run(plan{baseURL: srv.URL, workers: 2, duration: 50 * time.Millisecond, top: 3, similarityEvery: 2, queries: []string{"cat", "dog"}})

	require.Positive(t, got.total())
	assert.Equal(t, got.ranks, got.cacheHit)
	assert.Positive(t, got.codes[http.StatusNotFound], "similarity calls hit the 404 branch")

	var out strings.Builder
	report(&out, got, 50*time.Millisecond)
	assert.Contains(t, out.String(), "status    200")
}
