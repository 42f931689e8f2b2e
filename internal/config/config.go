// Package config loads the kiosk's static configuration.
//
// Values come from, in increasing priority: DefaultConfig, the YAML file,
// .env files and MEALKIOSK_* environment variables. Settings an operator
// changes at the kiosk (dining hall, backend credentials, admin PIN) live in
// the store's key/value configuration instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/mealkiosk/internal/remote"
	"github.com/roach88/mealkiosk/internal/store"
)

// Config holds all mealkiosk configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Backend  BackendConfig  `yaml:"backend"`
	Sync     SyncConfig     `yaml:"sync"`
	Scan     ScanConfig     `yaml:"scan"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig locates the local store.
type DatabaseConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
}

// BackendConfig configures the backend of record. URL and Key may be left
// empty and set at the kiosk instead.
type BackendConfig struct {
	Kind    string `yaml:"kind"` // rest, postgres
	URL     string `yaml:"url"`
	Key     string `yaml:"key"`
	DSN     string `yaml:"dsn"`
	Timeout string `yaml:"timeout"`
}

// SyncConfig configures the sync engine and its scheduler.
type SyncConfig struct {
	Interval          string `yaml:"interval"` // empty defers to the kiosk's sync_interval_minutes
	HeartbeatInterval string `yaml:"heartbeat_interval"`
	ProbeInterval     string `yaml:"probe_interval"` // "0" disables probing
	PushBatchSize     int    `yaml:"push_batch_size"`
	LookupChunkSize   int    `yaml:"lookup_chunk_size"`
}

// ScanConfig configures the scan screen.
type ScanConfig struct {
	ResultDisplay string `yaml:"result_display"`
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:   "mealkiosk.db",
			Driver: store.DriverCGO,
		},
		Backend: BackendConfig{
			Kind:    remote.KindREST,
			Timeout: "15s",
		},
		Sync: SyncConfig{
			Interval:          "",
			HeartbeatInterval: "1m",
			ProbeInterval:     "30s",
			PushBatchSize:     100,
			LookupChunkSize:   remote.DefaultChunkSize,
		},
		Scan: ScanConfig{
			ResultDisplay: "4s",
		},
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:8787",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. envFiles are loaded with godotenv before environment overrides are
// applied; missing env files are skipped and variables already set in the
// process environment win.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Environment variables read by applyEnvOverrides.
const (
	EnvDB          = "MEALKIOSK_DB"
	EnvDBDriver    = "MEALKIOSK_DB_DRIVER"
	EnvBackendKind = "MEALKIOSK_BACKEND_KIND"
	EnvBackendURL  = "MEALKIOSK_BACKEND_URL"
	EnvBackendKey  = "MEALKIOSK_BACKEND_KEY"
	EnvBackendDSN  = "MEALKIOSK_BACKEND_DSN"
	EnvAPIListen   = "MEALKIOSK_API_LISTEN"
	EnvLogLevel    = "MEALKIOSK_LOG_LEVEL"
)

func (c *Config) applyEnvOverrides() {
	set := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	set(EnvDB, &c.Database.Path)
	set(EnvDBDriver, &c.Database.Driver)
	set(EnvBackendKind, &c.Backend.Kind)
	set(EnvBackendURL, &c.Backend.URL)
	set(EnvBackendKey, &c.Backend.Key)
	set(EnvBackendDSN, &c.Backend.DSN)
	set(EnvAPIListen, &c.API.Listen)
	set(EnvLogLevel, &c.Logging.Level)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Driver != store.DriverCGO && c.Database.Driver != store.DriverPureGo {
		return fmt.Errorf("invalid database.driver %q (valid: %s, %s)", c.Database.Driver, store.DriverCGO, store.DriverPureGo)
	}
	if c.Backend.Kind != remote.KindREST && c.Backend.Kind != remote.KindPostgres {
		return fmt.Errorf("invalid backend.kind %q (valid: %s, %s)", c.Backend.Kind, remote.KindREST, remote.KindPostgres)
	}

	durations := []struct {
		name     string
		value    string
		zeroOK   bool
		optional bool
	}{
		{"backend.timeout", c.Backend.Timeout, false, true},
		{"sync.interval", c.Sync.Interval, false, true},
		{"sync.heartbeat_interval", c.Sync.HeartbeatInterval, false, false},
		{"sync.probe_interval", c.Sync.ProbeInterval, true, true},
		{"scan.result_display", c.Scan.ResultDisplay, false, false},
	}
	for _, d := range durations {
		if d.value == "" {
			if d.optional {
				continue
			}
			return fmt.Errorf("%s is required", d.name)
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if v < 0 || (v == 0 && !d.zeroOK) {
			return fmt.Errorf("invalid %s: must be positive", d.name)
		}
	}

	if c.Sync.PushBatchSize < 0 || c.Sync.LookupChunkSize < 0 {
		return fmt.Errorf("sync batch sizes must not be negative")
	}
	if c.API.Enabled && c.API.Listen == "" {
		return fmt.Errorf("api.listen is required when the api is enabled")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging.format %q (valid: json, console)", c.Logging.Format)
	}
	return nil
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// BackendTimeout returns the per-request backend timeout.
func (c *Config) BackendTimeout() time.Duration {
	return duration(c.Backend.Timeout, remote.DefaultTimeout)
}

// SyncInterval returns the full sync interval and whether the file or
// environment set one.
func (c *Config) SyncInterval() (time.Duration, bool) {
	if c.Sync.Interval == "" {
		return 5 * time.Minute, false
	}
	return duration(c.Sync.Interval, 5*time.Minute), true
}

// HeartbeatInterval returns the heartbeat interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return duration(c.Sync.HeartbeatInterval, time.Minute)
}

// ProbeInterval returns the connectivity probe interval; zero disables it.
func (c *Config) ProbeInterval() time.Duration {
	return duration(c.Sync.ProbeInterval, 30*time.Second)
}

// ResultDisplay returns how long scan results stay on screen.
func (c *Config) ResultDisplay() time.Duration {
	return duration(c.Scan.ResultDisplay, 4*time.Second)
}

// RemoteSettings returns the static backend settings for remote.NewFactory.
func (c *Config) RemoteSettings() remote.Settings {
	return remote.Settings{
		Kind:    c.Backend.Kind,
		URL:     c.Backend.URL,
		Key:     c.Backend.Key,
		DSN:     c.Backend.DSN,
		Timeout: c.BackendTimeout(),
	}
}
