// Package config provides configuration management for the Reel Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".reel-agent"

	// Environment variable names
	EnvPort     = "REEL_AGENT_PORT"
	EnvLogLevel = "REEL_AGENT_LOG_LEVEL"
	EnvDataDir  = "REEL_AGENT_DATA_DIR"
	EnvHeadless = "REEL_AGENT_HEADLESS"

	// Platform environment variable names
	EnvPlatformURL   = "REEL_PLATFORM_URL"
	EnvPlatformToken = "REEL_PLATFORM_TOKEN"
	EnvPlatformOrg   = "REEL_PLATFORM_ORG"

	// Tuning environment variable names
	EnvPollInterval = "REEL_AGENT_POLL_INTERVAL"
	EnvPollBudget   = "REEL_AGENT_POLL_BUDGET"
	EnvCacheTTL     = "REEL_AGENT_CACHE_TTL"

	// Database filename
	DBFilename = "reel-agent.db"

	// Polling defaults: one status query every 2s, hard stop after 5m.
	DefaultPollInterval = 2 * time.Second
	DefaultPollBudget   = 5 * time.Minute

	// Read cache TTL for reel/versions/transcript fetches.
	DefaultCacheTTL = 30 * time.Second
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	Headless() bool
	PlatformURL() string
	PlatformToken() string
	PlatformOrg() string
	PollInterval() time.Duration
	PollBudget() time.Duration
	CacheTTL() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	platformURL   string
	platformToken string
	platformOrg   string

	pollInterval time.Duration
	pollBudget   time.Duration
	cacheTTL     time.Duration
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		headless:     true,
		pollInterval: DefaultPollInterval,
		pollBudget:   DefaultPollBudget,
		cacheTTL:     DefaultCacheTTL,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	cfg.platformURL = os.Getenv(EnvPlatformURL)
	cfg.platformToken = os.Getenv(EnvPlatformToken)
	cfg.platformOrg = os.Getenv(EnvPlatformOrg)

	var err error
	if cfg.pollInterval, err = durationEnv(EnvPollInterval, DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.pollBudget, err = durationEnv(EnvPollBudget, DefaultPollBudget); err != nil {
		return nil, err
	}
	if cfg.cacheTTL, err = durationEnv(EnvCacheTTL, DefaultCacheTTL); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: duration must be positive", name)
	}
	return d, nil
}

// Port returns the local HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// PlatformURL returns the base URL of the reel platform API
func (c *EnvConfig) PlatformURL() string {
	return c.platformURL
}

// PlatformToken returns the bearer token for the platform API
func (c *EnvConfig) PlatformToken() string {
	return c.platformToken
}

// PlatformOrg returns the tenant organization slug, if any
func (c *EnvConfig) PlatformOrg() string {
	return c.platformOrg
}

// PollInterval returns the delay between reprocess status queries
func (c *EnvConfig) PollInterval() time.Duration {
	return c.pollInterval
}

// PollBudget returns the wall-clock budget after which polling stops
func (c *EnvConfig) PollBudget() time.Duration {
	return c.pollBudget
}

// CacheTTL returns the expiration for cached platform reads
func (c *EnvConfig) CacheTTL() time.Duration {
	return c.cacheTTL
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
