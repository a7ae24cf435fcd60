// Package health reports whether a service and the things it depends on
// (corpus, Postgres, Redis, Kafka) are usable. /health/live only says the
// process is up; /health/ready runs every registered check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// severity orders statuses so a report can take the worst one.
var severity = map[Status]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}

// checkTimeout bounds each check inside a readiness report.
const checkTimeout = 2 * time.Second

type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Service    string                     `json:"service"`
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Uptime     string                     `json:"uptime"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// Ping turns an error-returning check such as (*postgres.Client).Ping into a
// Check. A failing optional dependency only degrades the service.
func Ping(optional bool, ping func(ctx context.Context) error) Check {
	failed := StatusDown
	if optional {
		failed = StatusDegraded
	}
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failed, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

type namedCheck struct {
	name  string
	check Check
}

type Checker struct {
	service string
	started time.Time

	mu     sync.RWMutex
	checks []namedCheck
}

func NewChecker(service string) *Checker {
	return &Checker{service: service, started: time.Now()}
}

// Register adds a check. Registering a name again replaces the old check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == name {
			c.checks[i].check = check
			return
		}
	}
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

// Run executes the checks in parallel, each under its own deadline, and
// rolls them up to the worst status. A check that overruns its deadline is
// reported down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := append([]namedCheck(nil), c.checks...)
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, nc := range checks {
		g.Go(func() error {
			results[i] = c.runOne(gctx, nc.check)
			return nil
		})
	}
	g.Wait()

	report := Report{
		Service:    c.service,
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		CheckedAt:  time.Now().UTC(),
	}
	for i, nc := range checks {
		report.Components[nc.name] = results[i]
		if severity[results[i].Status] > severity[report.Status] {
			report.Status = results[i].Status
		}
	}
	return report
}

func (c *Checker) runOne(ctx context.Context, check Check) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	start := time.Now()
	result := check(ctx)
	if ctx.Err() != nil && result.Status == StatusUp {
		result = ComponentHealth{Status: StatusDown, Message: "check timed out"}
	}
	result.Latency = time.Since(start).Round(time.Microsecond).String()
	return result
}

func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive", "service": c.service})
	}
}

// ReadyHandler answers 503 only when something required is down; a degraded
// service keeps serving rank queries without its optional dependencies.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
