// Package health probes upstream inventory hosts and tracks whether the audit
// API can currently serve reports.
package health

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Target is an upstream endpoint to probe.
type Target struct {
	Name string
	URL  string
}

// TransitionFunc is an optional callback invoked when a target changes between
// healthy and degraded.
type TransitionFunc func(target Target, healthy bool)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// Status is a point-in-time view of one target.
type Status struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Healthy   bool      `json:"healthy"`
	FailCount int       `json:"fail_count"`
	LastProbe time.Time `json:"last_probe,omitempty"`
}

// Checker runs periodic upstream health probes.
type Checker struct {
	targets      []Target
	httpClient   *http.Client
	failCounts   map[string]int
	lastProbe    map[string]time.Time
	mu           sync.Mutex
	cfg          Config
	onTransition TransitionFunc
	onMetrics    MetricsRecordFunc
	logger       *zap.Logger
}

// New creates a new Checker. Target URLs without a path are probed at /healthz.
func New(targets []Target, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	ts := make([]Target, 0, len(targets))
	for _, t := range targets {
		t.URL = healthURL(t.URL)
		ts = append(ts, t)
	}

	return &Checker{
		targets:    ts,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		failCounts: make(map[string]int),
		lastProbe:  make(map[string]time.Time),
		cfg:        cfg,
		logger:     logger,
	}
}

func healthURL(base string) string {
	trimmed := strings.TrimRight(base, "/")
	if i := strings.Index(trimmed, "://"); i >= 0 && !strings.Contains(trimmed[i+3:], "/") {
		return trimmed + "/healthz"
	}
	return base
}

// SetTransition configures the healthy/degraded transition callback.
func (h *Checker) SetTransition(fn TransitionFunc) {
	h.onTransition = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start probes once immediately, then on every interval until ctx is done.
func (h *Checker) Start(ctx context.Context) {
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll probes every target concurrently.
func (h *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range h.targets {
		wg.Add(1)
		go func(target Target) {
			defer wg.Done()
			h.check(ctx, target)
		}(t)
	}
	wg.Wait()
}

func (h *Checker) check(ctx context.Context, target Target) {
	pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	success := h.probeEndpoint(pctx, target.URL)
	cancel()

	if h.onMetrics != nil {
		h.onMetrics(success)
	}

	h.mu.Lock()
	prevCount := h.failCounts[target.Name]
	if success {
		h.failCounts[target.Name] = 0
	} else {
		h.failCounts[target.Name]++
	}
	count := h.failCounts[target.Name]
	h.lastProbe[target.Name] = time.Now().UTC()
	h.mu.Unlock()

	switch {
	case success && prevCount >= h.cfg.FailThreshold:
		h.logger.Info("health: recovered", zap.String("target", target.Name))
		if h.onTransition != nil {
			h.onTransition(target, true)
		}
	case !success && count == h.cfg.FailThreshold:
		h.logger.Warn("health: degraded",
			zap.String("target", target.Name),
			zap.String("url", target.URL),
			zap.Int("fail_count", count),
		)
		if h.onTransition != nil {
			h.onTransition(target, false)
		}
	}
}

// Ready reports whether every target is below the failure threshold.
func (h *Checker) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.targets {
		if h.failCounts[t.Name] >= h.cfg.FailThreshold {
			return false
		}
	}
	return true
}

// Statuses returns the current state of every target.
func (h *Checker) Statuses() []Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Status, 0, len(h.targets))
	for _, t := range h.targets {
		fc := h.failCounts[t.Name]
		out = append(out, Status{
			Name:      t.Name,
			URL:       t.URL,
			Healthy:   fc < h.cfg.FailThreshold,
			FailCount: fc,
			LastProbe: h.lastProbe[t.Name],
		})
	}
	return out
}

// probeEndpoint attempts HEAD then GET, returning true if any 2xx response.
func (h *Checker) probeEndpoint(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := h.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true
		}
	}

	// Gin does not route HEAD to GET handlers.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err = h.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
