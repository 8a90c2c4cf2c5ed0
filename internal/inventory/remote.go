package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// InventoryPath is the inventory host endpoint RemoteSource calls.
const InventoryPath = "/api/v1/inventory"

// RemoteSource fetches the inventory from an inventory host across the
// privilege boundary. It makes exactly one request per call.
type RemoteSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// RemoteOption configures a RemoteSource.
type RemoteOption func(*RemoteSource)

// WithToken attaches a relay bearer token to every request.
func WithToken(token string) RemoteOption {
	return func(s *RemoteSource) { s.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) RemoteOption {
	return func(s *RemoteSource) { s.httpClient = hc }
}

// NewRemoteSource creates a RemoteSource for the inventory host at baseURL.
func NewRemoteSource(baseURL string, opts ...RemoteOption) *RemoteSource {
	s := &RemoteSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListInstalled implements Source. Only a 503, or a 200 with success=false,
// is reported as a CapabilityError; any other failing status is a host error.
func (s *RemoteSource) ListInstalled(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+InventoryPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build inventory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventory request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read inventory response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("inventory host rejected credentials (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Response
	decodeErr := json.Unmarshal(body, &out)

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable && decodeErr == nil && !out.Success:
		return nil, &CapabilityError{Reason: out.Error}
	case resp.StatusCode >= 300:
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, fmt.Errorf("inventory host error %d: %s", resp.StatusCode, msg)
	case decodeErr != nil:
		return nil, fmt.Errorf("decode inventory response: %w", decodeErr)
	case !out.Success:
		return nil, &CapabilityError{Reason: out.Error}
	}
	return out.Extensions, nil
}
