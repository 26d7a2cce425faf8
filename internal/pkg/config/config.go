package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between installations (API endpoint, store path)
// - default: Values common across all environments (backoff, retention, timeouts)
// -----------------------------------------------------------------------------

type Config struct {
	API          APIConfig
	Store        StoreConfig
	Sync         SyncConfig
	Connectivity ConnectivityConfig
	Coverage     CoverageConfig
	Log          LogConfig
}

type APIConfig struct {
	BaseURL       string        `envconfig:"API_BASE_URL" required:"true"`
	SubmitTimeout time.Duration `envconfig:"API_SUBMIT_TIMEOUT" default:"30s"`
}

type StoreConfig struct {
	Path            string        `envconfig:"STORE_PATH" required:"true"`
	RetentionWindow time.Duration `envconfig:"STORE_RETENTION_WINDOW" default:"72h"`
}

type SyncConfig struct {
	BackoffBase  time.Duration `envconfig:"SYNC_BACKOFF_BASE" default:"2s"`
	BackoffCap   time.Duration `envconfig:"SYNC_BACKOFF_CAP" default:"5m"`
	MaxAttempts  int           `envconfig:"SYNC_MAX_ATTEMPTS" default:"8"`
	PullInterval time.Duration `envconfig:"SYNC_PULL_INTERVAL" default:"1m"`
}

type ConnectivityConfig struct {
	ProbeInterval time.Duration `envconfig:"CONNECTIVITY_PROBE_INTERVAL" default:"15s"`
	ProbeTimeout  time.Duration `envconfig:"CONNECTIVITY_PROBE_TIMEOUT" default:"5s"`
}

type CoverageConfig struct {
	MinimumStaff int `envconfig:"COVERAGE_MINIMUM_STAFF" default:"2"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:       "http://localhost:18080",
			SubmitTimeout: 2 * time.Second,
		},
		Store: StoreConfig{
			Path:            ":memory:",
			RetentionWindow: 72 * time.Hour,
		},
		Sync: SyncConfig{
			BackoffBase:  2 * time.Second,
			BackoffCap:   5 * time.Minute,
			MaxAttempts:  8,
			PullInterval: time.Minute,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  time.Second,
		},
		Coverage: CoverageConfig{
			MinimumStaff: 2,
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeFormat: "2006-01-02 15:04:05.000",
		},
	}
}
