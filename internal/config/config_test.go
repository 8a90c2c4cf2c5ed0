package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoad_defaults(t *testing.T) {
	chdir(t, t.TempDir())
	v := viper.New()
	if err := Load(v, "extperm", ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.GetInt("server.port") != 8080 || v.GetInt("relay.port") != 8081 {
		t.Errorf("unexpected ports: %d %d", v.GetInt("server.port"), v.GetInt("relay.port"))
	}
	if v.GetString("inventory.mode") != ModeProfile {
		t.Errorf("inventory.mode = %q", v.GetString("inventory.mode"))
	}
	if Duration(v, "relay.token_ttl", 0) != time.Hour {
		t.Errorf("relay.token_ttl = %v", Duration(v, "relay.token_ttl", 0))
	}
}

func TestLoad_fileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "custom.yaml", `
server:
  port: 9090
inventory:
  mode: remote
  remote_url: http://inventory:8081
`)
	t.Setenv("EXTPERM_INVENTORY_TOKEN", "from-env")

	v := viper.New()
	if err := Load(v, "extperm", file); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.GetInt("server.port") != 9090 {
		t.Errorf("server.port = %d", v.GetInt("server.port"))
	}
	if v.GetString("inventory.token") != "from-env" {
		t.Errorf("inventory.token = %q", v.GetString("inventory.token"))
	}

	src, err := BuildSource(v, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*inventory.RemoteSource); !ok {
		t.Errorf("expected *RemoteSource, got %T", src)
	}
}

func TestLoad_missingExplicitFile(t *testing.T) {
	if err := Load(viper.New(), "extperm", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestBuildSource(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	src, err := BuildSource(v, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*inventory.ProfileSource); !ok {
		t.Errorf("expected *ProfileSource, got %T", src)
	}

	v.Set("inventory.mode", "carrier-pigeon")
	if _, err := BuildSource(v, zap.NewNop()); err == nil {
		t.Error("expected error for an unknown mode")
	}

	v.Set("inventory.mode", ModeRemote)
	v.Set("inventory.remote_url", "")
	if _, err := BuildSource(v, zap.NewNop()); err == nil {
		t.Error("expected error for remote mode without a URL")
	}
}

func TestLoadTable(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	tbl, err := LoadTable(v)
	if err != nil {
		t.Fatal(err)
	}
	if w, _ := tbl.Weight("scripting"); w != 30 {
		t.Errorf("scripting weight = %d", w)
	}

	v.Set("policy.file", writeFile(t, t.TempDir(), "policy.yaml", "weights:\n  scripting: 40\n"))
	tbl, err = LoadTable(v)
	if err != nil {
		t.Fatal(err)
	}
	if w, _ := tbl.Weight("scripting"); w != 40 {
		t.Errorf("overridden scripting weight = %d", w)
	}
}

func TestDefaultProfiles(t *testing.T) {
	if len(DefaultProfiles()) == 0 {
		t.Error("expected at least one default profile pattern")
	}
}

func TestNewAuditService(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("inventory.profiles", []string{filepath.Join(t.TempDir(), "missing")})

	svc, err := NewAuditService(v, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := svc.Run(ctx)
	if r.Error == "" {
		t.Error("expected an unavailable inventory for a missing profile")
	}

	v.Set("policy.file", writeFile(t, t.TempDir(), "bad.yaml", "weights: [not, a, map]\n"))
	if _, err := NewAuditService(v, zap.NewNop()); err == nil {
		t.Error("expected error for an invalid policy file")
	}
}

func TestSampleConfig_keepsBuiltinTables(t *testing.T) {
	sample, err := filepath.Abs(filepath.Join("..", "..", "configs", "extperm.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	chdir(t, filepath.Dir(filepath.Dir(sample)))

	v := viper.New()
	if err := Load(v, "extperm", sample); err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if f := v.GetString("policy.file"); f != "" {
		t.Errorf("sample config enables policy file %q by default", f)
	}

	table, err := LoadTable(v)
	if err != nil {
		t.Fatal(err)
	}
	if w, known := table.Weight("cookies"); known || w != 5 {
		t.Errorf("cookies weight = %d (known=%v), want the default 5", w, known)
	}
	if _, ok := table.AnnotationFor("debugger"); ok {
		t.Error("debugger should have no annotation with the built-in table")
	}

	// The example policy stays loadable for users who opt in.
	v.Set("policy.file", filepath.Join("configs", "policy.yaml"))
	custom, err := LoadTable(v)
	if err != nil {
		t.Fatalf("example policy: %v", err)
	}
	if w, _ := custom.Weight("cookies"); w != 15 {
		t.Errorf("example policy cookies weight = %d, want 15", w)
	}
}
