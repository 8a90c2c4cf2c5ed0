// Package config loads extperm settings with viper and turns them into the
// inventory source and weight table the commands run with.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/risk"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Inventory modes.
const (
	ModeProfile = "profile"
	ModeRemote  = "remote"
)

// SetDefaults registers a default for every key extperm reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("inventory.mode", ModeProfile)
	v.SetDefault("inventory.profiles", DefaultProfiles())
	v.SetDefault("inventory.remote_url", "http://localhost:8081")
	v.SetDefault("inventory.token", "")
	v.SetDefault("relay.port", 8081)
	v.SetDefault("relay.secret", "")
	v.SetDefault("relay.token_ttl", "1h")
	v.SetDefault("policy.file", "")
	v.SetDefault("health.interval", "30s")
	v.SetDefault("health.fail_threshold", 3)
}

// Load sets defaults, wires environment overrides and reads the config file.
// An explicit file must exist; otherwise name.yaml is looked up in configs/
// and the working directory and may be absent.
func Load(v *viper.Viper, name, file string) error {
	SetDefaults(v)
	v.SetEnvPrefix("EXTPERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// DefaultProfiles returns glob patterns for the Chromium-family profile
// directories of the current platform.
func DefaultProfiles() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		base := filepath.Join(home, "Library", "Application Support")
		return []string{
			filepath.Join(base, "Google", "Chrome", "*"),
			filepath.Join(base, "Chromium", "*"),
			filepath.Join(base, "BraveSoftware", "Brave-Browser", "*"),
			filepath.Join(base, "Microsoft Edge", "*"),
		}
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		return []string{
			filepath.Join(base, "Google", "Chrome", "User Data", "*"),
			filepath.Join(base, "Chromium", "User Data", "*"),
			filepath.Join(base, "BraveSoftware", "Brave-Browser", "User Data", "*"),
			filepath.Join(base, "Microsoft", "Edge", "User Data", "*"),
		}
	default:
		base := filepath.Join(home, ".config")
		return []string{
			filepath.Join(base, "google-chrome", "*"),
			filepath.Join(base, "chromium", "*"),
			filepath.Join(base, "BraveSoftware", "Brave-Browser", "*"),
			filepath.Join(base, "microsoft-edge", "*"),
		}
	}
}

// BuildSource returns the inventory source selected by inventory.mode.
func BuildSource(v *viper.Viper, logger *zap.Logger) (inventory.Source, error) {
	switch mode := strings.ToLower(v.GetString("inventory.mode")); mode {
	case ModeProfile, "":
		profiles := v.GetStringSlice("inventory.profiles")
		if len(profiles) == 0 {
			profiles = DefaultProfiles()
		}
		return inventory.NewProfileSource(profiles, logger), nil
	case ModeRemote:
		u := v.GetString("inventory.remote_url")
		if u == "" {
			return nil, fmt.Errorf("inventory.remote_url is required in remote mode")
		}
		var opts []inventory.RemoteOption
		if tok := v.GetString("inventory.token"); tok != "" {
			opts = append(opts, inventory.WithToken(tok))
		}
		return inventory.NewRemoteSource(u, opts...), nil
	default:
		return nil, fmt.Errorf("unknown inventory.mode %q (want %s or %s)", mode, ModeProfile, ModeRemote)
	}
}

// LoadTable loads the weight table named by policy.file, or the built-in one.
func LoadTable(v *viper.Viper) (*risk.Table, error) {
	return risk.LoadTable(v.GetString("policy.file"))
}

// NewAuditService wires the configured source and weight table into an
// audit service.
func NewAuditService(v *viper.Viper, logger *zap.Logger) (*audit.Service, error) {
	src, err := BuildSource(v, logger)
	if err != nil {
		return nil, err
	}
	table, err := LoadTable(v)
	if err != nil {
		return nil, err
	}
	return audit.NewService(inventory.NewCollector(src, logger), table, logger), nil
}

// Duration reads a duration key, falling back to def when it is unset or invalid.
func Duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	d := v.GetDuration(key)
	if d <= 0 {
		return def
	}
	return d
}
