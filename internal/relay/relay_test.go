package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenIssuer_roundTrip(t *testing.T) {
	ti := NewTokenIssuer("s3cret", time.Hour)

	token, err := ti.Issue("auditor-1")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected 3-part JWT, got %d parts", len(parts))
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "auditor-1" {
		t.Errorf("Subject: got %q", claims.Subject)
	}
	if !claims.HasScope(ScopeInventoryRead) {
		t.Errorf("Scopes: got %v", claims.Scopes)
	}
}

func TestTokenIssuer_wrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("one", time.Hour).Issue("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenIssuer("two", time.Hour).Verify(token); err == nil {
		t.Error("expected error for a token signed with another secret")
	}
}

func TestTokenIssuer_expired(t *testing.T) {
	ti := NewTokenIssuer("s3cret", time.Minute)
	ti.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := ti.Issue("a")
	if err != nil {
		t.Fatal(err)
	}

	ti.now = time.Now
	if _, err := ti.Verify(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestTokenIssuer_openMode(t *testing.T) {
	ti := NewTokenIssuer("", 0)
	if ti.Enabled() {
		t.Error("expected open mode with an empty secret")
	}
	if _, err := ti.Issue("a"); !errors.Is(err, ErrNoSecret) {
		t.Errorf("Issue() error = %v, want ErrNoSecret", err)
	}
	if ti.TTL() != time.Hour {
		t.Errorf("TTL = %v, want default 1h", ti.TTL())
	}
}

// ── Router ────────────────────────────────────────────────────────────────

func newTestRouter(src inventory.Source, secret string) *gin.Engine {
	logger := zap.NewNop()
	h := NewInventoryHandler(inventory.NewCollector(src, logger), NewTokenIssuer(secret, time.Hour), logger)
	return NewRouter(h, logger)
}

func TestInventory_openMode(t *testing.T) {
	r := newTestRouter(inventory.StaticSource{
		{Name: "Dark Reader", Permissions: []string{"storage"}},
	}, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	var resp inventory.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || len(resp.Extensions) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestInventory_requiresToken(t *testing.T) {
	r := newTestRouter(inventory.StaticSource{}, "s3cret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}

	token, _ := NewTokenIssuer("s3cret", time.Hour).Issue("auditor")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestInventory_capabilityUnavailable(t *testing.T) {
	r := newTestRouter(inventory.UnavailableSource{Reason: "no browser"}, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var resp inventory.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Error != inventory.ErrCapabilityUnavailable.Error() {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(inventory.StaticSource{}, "s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
