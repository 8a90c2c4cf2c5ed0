package inventory

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type errSource struct{ err error }

func (s errSource) ListInstalled(_ context.Context) ([]Record, error) { return nil, s.err }

func TestCollect_normalizesRecords(t *testing.T) {
	src := StaticSource{
		{Name: "Dark Reader", Permissions: []string{"storage"}},
		{Name: ""},
		{Name: "uBlock", HostPermissions: []string{"<all_urls>"}},
	}
	c := NewCollector(src, zap.NewNop())

	resp, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}
	if len(resp.Extensions) != 2 {
		t.Fatalf("expected 2 extensions (nameless one dropped), got %d", len(resp.Extensions))
	}
	if resp.Extensions[0].Name != "Dark Reader" || resp.Extensions[1].Name != "uBlock" {
		t.Errorf("order not preserved: %+v", resp.Extensions)
	}
	for _, r := range resp.Extensions {
		if r.Permissions == nil || r.HostPermissions == nil || r.Icons == nil {
			t.Errorf("expected non-nil slices, got %+v", r)
		}
	}
}

func TestCollect_capabilityUnavailable(t *testing.T) {
	c := NewCollector(UnavailableSource{Reason: "no profile"}, zap.NewNop())

	resp, err := c.Collect(context.Background())
	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response even on failure")
	}
	if resp.Success {
		t.Error("expected Success=false")
	}
	if resp.Error != ErrCapabilityUnavailable.Error() {
		t.Errorf("Error = %q, want the fixed capability message", resp.Error)
	}
	if resp.Extensions == nil || len(resp.Extensions) != 0 {
		t.Errorf("expected an empty, non-nil extension list, got %v", resp.Extensions)
	}
}

func TestCollect_otherFailure(t *testing.T) {
	c := NewCollector(errSource{err: errors.New("disk on fire")}, zap.NewNop())

	resp, err := c.Collect(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrCapabilityUnavailable) {
		t.Error("did not expect a capability error")
	}
	if resp.Success || resp.Error != "disk on fire" || len(resp.Extensions) != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCapabilityError_message(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"", "extension management API is not available"},
		{"extension management API is not available", "extension management API is not available"},
		{"no profile", "extension management API is not available: no profile"},
	}
	for _, tt := range tests {
		if got := (&CapabilityError{Reason: tt.reason}).Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestStaticSource_returnsCopy(t *testing.T) {
	src := StaticSource{{Name: "a"}}
	got, _ := src.ListInstalled(context.Background())
	got[0].Name = "changed"
	if src[0].Name != "a" {
		t.Error("ListInstalled must not expose the backing slice")
	}
}
