// Package config loads the dashboard sync configuration from an optional
// JSON file with environment-variable overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/logger"
)

const envPrefix = "REDMITE"

var errInvalidConfig = errors.New("invalid configuration")

// Config holds every tunable of the sync core. Thresholds that shifted
// across dashboard revisions (staleness window, retry cap) are fields
// here rather than literals in the packages that consume them.
type Config struct {
	// APIBaseURL is the REST endpoint; differs between local development
	// and production.
	APIBaseURL string `json:"api_base_url" envconfig:"API_BASE_URL"`

	// StreamURL is the push-channel endpoint. When empty the per-user
	// stream endpoint from settings is used.
	StreamURL string `json:"stream_url" envconfig:"STREAM_URL"`

	ConnectTimeout    Duration `json:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
	RequestTimeout    Duration `json:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	ReconnectDelay    Duration `json:"reconnect_delay" envconfig:"RECONNECT_DELAY"`
	MaxReconnectTries uint     `json:"max_reconnect_tries" envconfig:"MAX_RECONNECT_TRIES"`

	// StalenessWindow is how far past a device's predicted next update
	// the clock may run before the device is reported as overdue.
	StalenessWindow Duration `json:"staleness_window" envconfig:"STALENESS_WINDOW"`

	// StatusRefresh is the repaint period for relative-time display.
	StatusRefresh Duration `json:"status_refresh" envconfig:"STATUS_REFRESH"`

	Logging logger.Config `json:"logging"`
}

// Default returns the production configuration. The thresholds match the
// most recent values the dashboard shipped with.
func Default() Config {
	return Config{
		APIBaseURL:        "https://dashboard.yieldx.blue:4000",
		ConnectTimeout:    Duration(5 * time.Second),
		RequestTimeout:    Duration(15 * time.Second),
		ReconnectDelay:    Duration(3 * time.Second),
		MaxReconnectTries: 5,
		StalenessWindow:   Duration(10 * time.Minute),
		StatusRefresh:     Duration(60 * time.Second),
	}
}

// Load starts from Default, overlays the JSON file at path (skipped when
// path is empty) and then applies REDMITE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Environment wins over both defaults and file.
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the state machines cannot run with.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w: api_base_url is required", errInvalidConfig)
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect_timeout must be positive", errInvalidConfig)
	}

	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: reconnect_delay must be positive", errInvalidConfig)
	}

	if c.MaxReconnectTries == 0 {
		return fmt.Errorf("%w: max_reconnect_tries must be at least 1", errInvalidConfig)
	}

	if c.StalenessWindow <= 0 {
		return fmt.Errorf("%w: staleness_window must be positive", errInvalidConfig)
	}

	return nil
}
