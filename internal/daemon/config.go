// Package daemon wires storage, the game service, the batch jobs and the HTTP
// API into one long-running process.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration, read from <home>/config.toml.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Jobs     JobsConfig     `toml:"jobs"`
	Economy  EconomyConfig  `toml:"economy"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	Timeout     string   `toml:"timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Dir holds puffquest.db. Empty means <home>/data.
	Dir string `toml:"dir"`
}

// JobsConfig configures the batch job schedulers.
type JobsConfig struct {
	Enabled          bool   `toml:"enabled"`
	PassiveInterval  string `toml:"passive_interval"`
	StatsInterval    string `toml:"stats_interval"`
	MinClaimInterval string `toml:"min_claim_interval"`
	RunOnStart       bool   `toml:"run_on_start"`
}

// EconomyConfig tunes the game service.
type EconomyConfig struct {
	StreakBonus  bool    `toml:"streak_bonus"`
	ExchangeRate float64 `toml:"exchange_rate"`
	PuffCooldown string  `toml:"puff_cooldown"` // "0s" disables

	// RequireInvite closes registration to wallets without an invite code.
	RequireInvite bool `toml:"require_invite"`
}

// MetricsConfig configures /metrics and the span recorder.
type MetricsConfig struct {
	Enabled  bool `toml:"enabled"`
	MaxSpans int  `toml:"max_spans"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8787,
			CORSOrigins: []string{"*"},
			Timeout:     "30s",
		},
		Jobs: JobsConfig{
			Enabled:          true,
			PassiveInterval:  "1h",
			StatsInterval:    "1h",
			MinClaimInterval: "1h",
			RunOnStart:       true,
		},
		Economy: EconomyConfig{
			StreakBonus:  true,
			ExchangeRate: 0.01,
			PuffCooldown: "4s",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			MaxSpans: 1_000,
		},
	}
}

// HomeDir returns $PUFFQUEST_HOME, or ~/.puffquest.
func HomeDir() string {
	if env := os.Getenv("PUFFQUEST_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".puffquest")
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(HomeDir(), "config.toml")
}

// LoadConfig reads path over DefaultConfig. A missing file yields the
// defaults; keys absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Economy.ExchangeRate <= 0 {
		return fmt.Errorf("economy.exchange_rate must be positive")
	}
	for key, v := range map[string]string{
		"api.timeout":             c.API.Timeout,
		"jobs.passive_interval":   c.Jobs.PassiveInterval,
		"jobs.stats_interval":     c.Jobs.StatsInterval,
		"jobs.min_claim_interval": c.Jobs.MinClaimInterval,
		"economy.puff_cooldown":   c.Economy.PuffCooldown,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	return nil
}

// ListenAddr is host:port for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// DataDir resolves the database directory.
func (c Config) DataDir() string {
	if c.Database.Dir != "" {
		return c.Database.Dir
	}
	return filepath.Join(HomeDir(), "data")
}

// parseDuration reads a duration setting, falling back to def when empty or
// malformed.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
