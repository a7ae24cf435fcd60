// Command loadtest drives concurrent rank and similarity traffic against a
// running ranker and prints throughput, latency percentiles, cache hit rate
// and the status code mix.
//
// Usage:
//
//	go run ./cmd/loadtest --url http://localhost:8080 -c 20 -d 30s
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var builtinQueries = []string{
	"cat ran",
	"the dog",
	"running fast",
	"sentence ranking",
	"term frequency",
	"inverse document frequency",
	"cosine similarity",
	"stemmed tokens",
	"corpus index",
	"query cache",
}

type plan struct {
	baseURL         string
	workers         int
	duration        time.Duration
	top             int
	similarityEvery int
	queries         []string
}

// tally is owned by a single worker until the run ends and the tallies are
// merged, so it needs no locking.
type tally struct {
	ok, failed      int64
	ranks, cacheHit int64
	latencies       []time.Duration
	codes           map[int]int64
}

func newTally() *tally { return &tally{codes: make(map[int]int64)} }

// record counts one finished request. status 0 with err set is a transport
// failure and has no meaningful latency.
func (t *tally) record(took time.Duration, status int, err error) {
	if err != nil {
		t.failed++
		return
	}
	if status >= 200 && status < 300 {
		t.ok++
	} else {
		t.failed++
	}
	t.latencies = append(t.latencies, took)
	t.codes[status]++
}

func (t *tally) merge(o *tally) {
	t.ok += o.ok
	t.failed += o.failed
	t.ranks += o.ranks
	t.cacheHit += o.cacheHit
	t.latencies = append(t.latencies, o.latencies...)
	for code, n := range o.codes {
		t.codes[code] += n
	}
}

func (t *tally) total() int64 { return t.ok + t.failed }

func main() {
	p := plan{}
	flag.StringVarP(&p.baseURL, "url", "u", "http://localhost:8080", "ranker base URL")
	flag.IntVarP(&p.workers, "concurrency", "c", 10, "concurrent workers")
	flag.DurationVarP(&p.duration, "duration", "d", 30*time.Second, "how long to run")
	flag.IntVarP(&p.top, "top", "n", 10, "top parameter for rank queries")
	flag.IntVar(&p.similarityEvery, "similarity-every", 0, "every Nth request per worker is a similarity call (0 disables)")
	queriesPath := flag.StringP("queries", "q", "", "file with one query per line instead of the built-in set")
	flag.Parse()

	p.baseURL = strings.TrimRight(p.baseURL, "/")
	p.queries = builtinQueries
	if *queriesPath != "" {
		qs, err := readQueries(*queriesPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "loadtest:", err)
			os.Exit(1)
		}
		p.queries = qs
	}

	fmt.Printf("load testing %s with %d workers for %s (%d queries)\n", p.baseURL, p.workers, p.duration, len(p.queries))
	started := time.Now()
	result := run(p)
	report(os.Stdout, result, time.Since(started))
	if result.total() == 0 {
		fmt.Fprintln(os.Stderr, "loadtest: no request completed; is the ranker up?")
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return out, nil
}

func run(p plan) *tally {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: p.workers,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.duration)
	defer cancel()

	tallies := make([]*tally, p.workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := range p.workers {
		tallies[w] = newTally()
		g.Go(func() error {
			work(ctx, client, p, w, tallies[w])
			return nil
		})
	}
	_ = g.Wait()

	merged := newTally()
	for _, t := range tallies {
		merged.merge(t)
	}
	return merged
}

// work cycles through the queries starting at offset until ctx ends.
func work(ctx context.Context, client *http.Client, p plan, offset int, t *tally) {
	for n := 1; ctx.Err() == nil; n++ {
		q := p.queries[(offset+n)%len(p.queries)]
		if p.similarityEvery > 0 && n%p.similarityEvery == 0 {
			other := p.queries[(offset+n+1)%len(p.queries)]
			call(ctx, client, p.baseURL+"/api/v1/similarity?"+url.Values{"a": {q}, "b": {other}}.Encode(), false, t)
			continue
		}
		call(ctx, client, p.baseURL+"/api/v1/rank?"+url.Values{"q": {q}, "top": {strconv.Itoa(p.top)}}.Encode(), true, t)
	}
}

func call(ctx context.Context, client *http.Client, target string, rank bool, t *tally) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		t.record(0, 0, err)
		return
	}
	began := time.Now()
	resp, err := client.Do(req)
	took := time.Since(began)
	if err != nil {
		// cut off by the end of the run
		if ctx.Err() == nil {
			t.record(took, 0, err)
		}
		return
	}
	defer resp.Body.Close()

	if rank && resp.StatusCode == http.StatusOK {
		t.ranks++
		var body struct {
			CacheHit bool `json:"cache_hit"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.CacheHit {
			t.cacheHit++
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	t.record(took, resp.StatusCode, nil)
}

func report(w io.Writer, t *tally, elapsed time.Duration) {
	total := t.total()
	fmt.Fprintf(w, "\nrequests  %d ok, %d failed", t.ok, t.failed)
	if total > 0 {
		fmt.Fprintf(w, " (%.2f%% errors, %.1f req/s)", 100*float64(t.failed)/float64(total), float64(total)/elapsed.Seconds())
	}
	fmt.Fprintln(w)
	if t.ranks > 0 {
		fmt.Fprintf(w, "cache     %.2f%% of %d rank responses were hits\n", 100*float64(t.cacheHit)/float64(t.ranks), t.ranks)
	}

	if len(t.latencies) > 0 {
		slices.Sort(t.latencies)
		var sum time.Duration
		for _, l := range t.latencies {
			sum += l
		}
		fmt.Fprintf(w, "latency   min %s  avg %s  max %s\n", t.latencies[0], sum/time.Duration(len(t.latencies)), t.latencies[len(t.latencies)-1])
		for _, pct := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "          p%-3g %s\n", pct, percentile(t.latencies, pct))
		}
	}

	codes := make([]int, 0, len(t.codes))
	for code := range t.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "status    %d x %d\n", code, t.codes[code])
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	return sorted[min(max(rank, 1), len(sorted))-1]
}
