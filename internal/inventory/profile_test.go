package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// writeExtension lays out <profile>/Extensions/<id>/<version>/manifest.json.
func writeExtension(t *testing.T, profile, id, version, manifest string) string {
	t.Helper()
	dir := filepath.Join(profile, "Extensions", id, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestProfileSource_manifestV3(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "Default")
	writeExtension(t, profile, "aaaa", "1.0.0_0", `{
		"name": "Tab Wrangler",
		"version": "1.0.0",
		"manifest_version": 3,
		"permissions": ["tabs", "storage"],
		"host_permissions": ["https://*.example.com/*"],
		"icons": {"128": "icon128.png", "16": "icon16.png"}
	}`)

	src := NewProfileSource([]string{profile}, zap.NewNop())
	recs, err := src.ListInstalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.ID != "aaaa" || r.Name != "Tab Wrangler" || r.Version != "1.0.0" {
		t.Errorf("unexpected record: %+v", r)
	}
	if len(r.Permissions) != 2 || r.Permissions[0] != "tabs" {
		t.Errorf("permissions = %v", r.Permissions)
	}
	if len(r.HostPermissions) != 1 || r.HostPermissions[0] != "https://*.example.com/*" {
		t.Errorf("host permissions = %v", r.HostPermissions)
	}
	if len(r.Icons) != 2 || r.Icons[0].Size != 16 || r.Icons[1].Size != 128 {
		t.Errorf("icons = %+v", r.Icons)
	}
	if r.Icons[0].URL != "chrome://extension-icon/aaaa/16/0" {
		t.Errorf("icon URL = %q", r.Icons[0].URL)
	}
}

func TestProfileSource_manifestV2SplitsHostPatterns(t *testing.T) {
	profile := t.TempDir()
	writeExtension(t, profile, "bbbb", "2.1_0", `{
		"name": "Old Blocker",
		"version": "2.1",
		"manifest_version": 2,
		"permissions": ["webRequest", "webRequestBlocking", "<all_urls>", "http://*/*", {"socket": ["tcp-connect"]}]
	}`)

	recs, err := NewProfileSource([]string{profile}, zap.NewNop()).ListInstalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	r := recs[0]
	wantPerms := []string{"webRequest", "webRequestBlocking", "socket"}
	if len(r.Permissions) != len(wantPerms) {
		t.Fatalf("permissions = %v, want %v", r.Permissions, wantPerms)
	}
	for i, p := range wantPerms {
		if r.Permissions[i] != p {
			t.Errorf("permissions[%d] = %q, want %q", i, r.Permissions[i], p)
		}
	}
	if len(r.HostPermissions) != 2 || r.HostPermissions[0] != "<all_urls>" || r.HostPermissions[1] != "http://*/*" {
		t.Errorf("host permissions = %v", r.HostPermissions)
	}
}

func TestProfileSource_picksLatestVersion(t *testing.T) {
	profile := t.TempDir()
	writeExtension(t, profile, "cccc", "1.9.0_0", `{"name": "Old", "version": "1.9.0"}`)
	writeExtension(t, profile, "cccc", "1.10.0_0", `{"name": "New", "version": "1.10.0"}`)

	recs, err := NewProfileSource([]string{profile}, zap.NewNop()).ListInstalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Version != "1.10.0" {
		t.Errorf("expected the 1.10.0 manifest, got %+v", recs)
	}
}

func TestProfileSource_localizedName(t *testing.T) {
	profile := t.TempDir()
	dir := writeExtension(t, profile, "dddd", "3.0_0", `{"name": "__MSG_appName__", "default_locale": "de", "version": "3.0"}`)
	locale := filepath.Join(dir, "_locales", "de")
	if err := os.MkdirAll(locale, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(locale, "messages.json"), []byte(`{"APPNAME": {"message": "Übersetzer"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	recs, err := NewProfileSource([]string{profile}, zap.NewNop()).ListInstalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].Name != "Übersetzer" {
		t.Errorf("Name = %q, want Übersetzer", recs[0].Name)
	}
}

func TestProfileSource_globAndDedup(t *testing.T) {
	root := t.TempDir()
	manifest := `{"name": "Synced", "version": "1.0"}`
	writeExtension(t, filepath.Join(root, "Default"), "eeee", "1.0_0", manifest)
	writeExtension(t, filepath.Join(root, "Profile 1"), "eeee", "1.0_0", manifest)
	writeExtension(t, filepath.Join(root, "Profile 1"), "ffff", "1.0_0", `{"name": "Another", "version": "1.0"}`)

	recs, err := NewProfileSource([]string{filepath.Join(root, "*")}, zap.NewNop()).ListInstalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 unique extensions, got %d: %+v", len(recs), recs)
	}
	if recs[0].Name != "Another" || recs[1].Name != "Synced" {
		t.Errorf("expected records sorted by name, got %q, %q", recs[0].Name, recs[1].Name)
	}
}

func TestProfileSource_skipsBrokenManifest(t *testing.T) {
	profile := t.TempDir()
	writeExtension(t, profile, "gggg", "1.0_0", `{not json`)
	writeExtension(t, profile, "hhhh", "1.0_0", `{"name": "Fine"}`)

	recs, err := NewProfileSource([]string{profile}, zap.NewNop()).ListInstalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Name != "Fine" {
		t.Errorf("expected only the readable extension, got %+v", recs)
	}
}

func TestProfileSource_noProfileIsCapabilityError(t *testing.T) {
	src := NewProfileSource([]string{filepath.Join(t.TempDir(), "missing")}, zap.NewNop())
	_, err := src.ListInstalled(context.Background())
	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Errorf("expected ErrCapabilityUnavailable, got %v", err)
	}
}

func TestProfileSource_profileWithoutExtensions(t *testing.T) {
	recs, err := NewProfileSource([]string{t.TempDir()}, zap.NewNop()).ListInstalled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0_0", "1.0.0_0", 0},
		{"1.10.0_0", "1.9.0_0", 1},
		{"1.0_1", "1.0_0", 1},
		{"2", "10", -1},
		{"1.0", "1.0.1", -1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
