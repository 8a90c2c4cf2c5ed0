package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrInventoryUnavailable is returned by Report when the server could not
// enumerate installed extensions.
var ErrInventoryUnavailable = errors.New("extension inventory unavailable")

// Annotation explains why a permission is considered sensitive.
type Annotation struct {
	Permission  string `json:"permission"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// PermissionFinding describes how one permission contributed to a score.
type PermissionFinding struct {
	Permission string      `json:"permission"`
	Weight     int         `json:"weight"`
	Known      bool        `json:"known"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// HostFinding records the scope class of one host pattern.
type HostFinding struct {
	Pattern    string  `json:"pattern"`
	Class      string  `json:"class"`
	Multiplier float64 `json:"multiplier"`
}

// Extension is one evaluated extension.
type Extension struct {
	ID              string              `json:"id,omitempty"`
	Name            string              `json:"name"`
	Version         string              `json:"version,omitempty"`
	HostPermissions []string            `json:"host_permissions"`
	RawScore        int                 `json:"raw_score"`
	Multiplier      float64             `json:"multiplier"`
	Score           int                 `json:"score"`
	Tier            string              `json:"tier"`
	Permissions     []PermissionFinding `json:"permissions"`
	Hosts           []HostFinding       `json:"hosts"`
	Flagged         int                 `json:"flagged"`
}

// Summary counts extensions per tier.
type Summary struct {
	Total    int `json:"total"`
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Report is the result of one audit run.
type Report struct {
	ID          string      `json:"id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Extensions  []Extension `json:"extensions"`
	Summary     Summary     `json:"summary"`
	Error       string      `json:"error,omitempty"`
}

// EvaluateRequest is the payload for Evaluate.
type EvaluateRequest struct {
	Name            string   `json:"name"`
	Version         string   `json:"version,omitempty"`
	Permissions     []string `json:"permissions"`
	HostPermissions []string `json:"host_permissions"`
}

// Explanation is the weight and annotation of a single permission.
type Explanation struct {
	Permission string      `json:"permission"`
	Weight     int         `json:"weight"`
	Known      bool        `json:"known"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// Client is the audit API SDK entry point.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
	cache       *explainCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client, overriding any TLS options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithCacheTTL enables in-memory caching of Explain results with the given TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		if ttl <= 0 {
			return fmt.Errorf("cache TTL must be positive, got %s", ttl)
		}
		c.cache = newExplainCache(ttl)
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed certificate.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: 30 * time.Second,
		}
		return nil
	}
}

// New creates a new Client connected to base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Report runs an audit on the server. minTier may be empty for all tiers.
// When the server's inventory is unavailable the report is returned together
// with an error wrapping ErrInventoryUnavailable.
func (c *Client) Report(ctx context.Context, minTier string) (*Report, error) {
	u := c.base + "/api/v1/report"
	if minTier != "" {
		u += "?min_tier=" + url.QueryEscape(minTier)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	status, body, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}

	if status == http.StatusServiceUnavailable {
		var r Report
		if err := json.Unmarshal(body, &r); err != nil || r.Error == "" {
			return nil, fmt.Errorf("server error %d: %s", status, string(body))
		}
		return &r, fmt.Errorf("%w: %s", ErrInventoryUnavailable, r.Error)
	}
	if err := checkStatus(req, status, body); err != nil {
		return nil, err
	}

	var r Report
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// Evaluate scores an extension that need not be installed.
func (c *Client) Evaluate(ctx context.Context, er EvaluateRequest) (*Extension, error) {
	b, err := json.Marshal(er)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/evaluate", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var ext Extension
	if err := json.Unmarshal(body, &ext); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}
	return &ext, nil
}

// Explain returns the weight and annotation of permission.
func (c *Client) Explain(ctx context.Context, permission string) (*Explanation, error) {
	if permission == "" {
		return nil, fmt.Errorf("permission is required")
	}
	if c.cache != nil {
		if e, ok := c.cache.get(permission); ok {
			return e, nil
		}
	}

	u := c.base + "/api/v1/permissions/" + url.PathEscape(permission)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var e Explanation
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("decode explanation: %w", err)
	}
	if c.cache != nil {
		c.cache.set(permission, &e)
	}
	return &e, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	status, body, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(req, status, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doStatusBody(req *http.Request) (int, []byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func checkStatus(req *http.Request, status int, body []byte) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("not found: %s", req.URL.Path)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: %s", string(body))
	case status == http.StatusBadRequest:
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("bad request: %s", payload.Error)
		}
		return fmt.Errorf("bad request: %s", string(body))
	case status >= 300:
		return fmt.Errorf("server error %d: %s", status, string(body))
	}
	return nil
}

type cacheEntry struct {
	result    *Explanation
	expiresAt time.Time
}

type explainCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newExplainCache(ttl time.Duration) *explainCache {
	return &explainCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (ec *explainCache) get(key string) (*Explanation, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	e, ok := ec.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.result, true
}

func (ec *explainCache) set(key string, result *Explanation) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.entries[key] = &cacheEntry{result: result, expiresAt: time.Now().Add(ec.ttl)}
}
