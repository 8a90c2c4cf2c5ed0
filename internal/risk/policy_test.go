package risk

import (
	"os"
	"path/filepath"
	"testing"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTable_emptyPathIsDefault(t *testing.T) {
	tbl, err := LoadTable("")
	if err != nil {
		t.Fatal(err)
	}
	if tbl != DefaultTable() {
		t.Error("expected the default table for an empty path")
	}
}

func TestLoadTable_missingFileIsDefault(t *testing.T) {
	tbl, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if tbl != DefaultTable() {
		t.Error("expected the default table for a missing file")
	}
}

func TestLoadTable_overlay(t *testing.T) {
	path := writePolicy(t, `
default_weight: 7
weights:
  nativeMessaging: 25
  storage: 1
annotations:
  nativeMessaging:
    url: https://developer.chrome.com/docs/extensions/develop/concepts/native-messaging
    description: Exchanges messages with programs installed outside the browser.
`)
	tbl, err := LoadTable(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := tbl.DefaultWeight(); got != 7 {
		t.Errorf("DefaultWeight = %d, want 7", got)
	}
	if w, ok := tbl.Weight("nativeMessaging"); !ok || w != 25 {
		t.Errorf("nativeMessaging = %d (known=%v)", w, ok)
	}
	if w, _ := tbl.Weight("storage"); w != 1 {
		t.Errorf("storage = %d, want 1", w)
	}
	// Untouched keys keep their built-in weight.
	if w, _ := tbl.Weight("scripting"); w != 30 {
		t.Errorf("scripting = %d, want 30", w)
	}
	if a, ok := tbl.AnnotationFor("nativeMessaging"); !ok || a.Permission != "nativeMessaging" {
		t.Errorf("nativeMessaging annotation = %+v (ok=%v)", a, ok)
	}
	if _, ok := tbl.AnnotationFor("scripting"); !ok {
		t.Error("expected built-in annotations to survive the overlay")
	}

	// The default table is untouched.
	if w, _ := DefaultTable().Weight("storage"); w != 5 {
		t.Errorf("default storage weight changed to %d", w)
	}
}

func TestLoadTable_rejectsNegativeWeight(t *testing.T) {
	path := writePolicy(t, "weights:\n  tabs: -1\n")
	if _, err := LoadTable(path); err == nil {
		t.Error("expected an error for a negative weight")
	}
}

func TestLoadTable_rejectsNegativeDefault(t *testing.T) {
	path := writePolicy(t, "default_weight: -3\n")
	if _, err := LoadTable(path); err == nil {
		t.Error("expected an error for a negative default weight")
	}
}

func TestLoadTable_rejectsAnnotationWithoutDescription(t *testing.T) {
	path := writePolicy(t, "annotations:\n  cookies:\n    url: https://example.com\n")
	if _, err := LoadTable(path); err == nil {
		t.Error("expected an error for an annotation without a description")
	}
}

func TestLoadTable_invalidYAML(t *testing.T) {
	path := writePolicy(t, "weights: [unclosed\n")
	if _, err := LoadTable(path); err == nil {
		t.Error("expected a parse error")
	}
}
