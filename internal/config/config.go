// Package config loads run settings from config.json, the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/serpwalk/internal/fingerprint"
)

// Defaults for keys absent from both the file and the environment.
const (
	DefaultConfigFile  = "config.json"
	DefaultProxyURL    = "https://profile-proxy.multilogin.com"
	DefaultControlHost = "127.0.0.1"
	DefaultTimezone    = "America/Sao_Paulo"
	DefaultHTTPTimeout = 30 * time.Second
)

// Backends accepted by OUTPUT.BACKEND.
const (
	BackendCSV      = "csv"
	BackendNDJSON   = "ndjson"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// defaultPaths are the output files used when OUTPUT.PATH is unset.
var defaultPaths = map[string]string{
	BackendCSV:    "google_search.csv",
	BackendNDJSON: "google_search.ndjson",
	BackendSQLite: "google_search.db",
}

// Config holds everything a run needs.
type Config struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`

	MLXBase     string `mapstructure:"mlx_base"`
	MLXLauncher string `mapstructure:"mlx_launcher"`
	MLXProxy    string `mapstructure:"mlx_proxy"`
	LocalHost   string `mapstructure:"localhost"`

	BrowserType string `mapstructure:"browser_type"`
	OSType      string `mapstructure:"operational_system"`

	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Browser BrowserConfig `mapstructure:"browser"`
	Search  SearchConfig  `mapstructure:"search"`
	Output  OutputConfig  `mapstructure:"output"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Report  ReportConfig  `mapstructure:"report"`
}

type ProxyConfig struct {
	Country     string `mapstructure:"country"`
	Region      string `mapstructure:"region"`
	City        string `mapstructure:"city"`
	Protocol    string `mapstructure:"protocol"`
	SessionType string `mapstructure:"session_type"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	// StaticFile lists host:port:user:pass proxies used instead of the
	// remote service.
	StaticFile string `mapstructure:"static_file"`
}

type BrowserConfig struct {
	Headless   bool     `mapstructure:"headless"`
	Automation string   `mapstructure:"automation"`
	StartURLs  []string `mapstructure:"start_urls"`
	// Flags override fingerprint masking flags by wire name.
	Flags map[string]string `mapstructure:"flags"`
}

type SearchConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	StepDelay   time.Duration `mapstructure:"step_delay"`
}

type OutputConfig struct {
	Backend string `mapstructure:"backend"`
	// Path is the output file of file backends. Empty selects the backend's
	// default, see FilePath.
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
}

// FilePath returns Path, or the default file of the backend when Path is
// empty: google_search.csv, google_search.ndjson or google_search.db.
func (o OutputConfig) FilePath() string {
	if o.Path != "" {
		return o.Path
	}
	return defaultPaths[o.Backend]
}

type LogConfig struct {
	Dir      string `mapstructure:"dir"`
	File     string `mapstructure:"file"`
	Timezone string `mapstructure:"timezone"`
	Level    string `mapstructure:"level"`
}

type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	TLSProfile        string        `mapstructure:"tls_profile"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type MetricsConfig struct {
	// Port serves /metrics when positive.
	Port int `mapstructure:"port"`
}

type ReportConfig struct {
	// Path receives a JSON run report when set.
	Path string `mapstructure:"path"`
}

// Validate checks the loaded configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Token == "" {
		if c.Email == "" || c.Password == "" {
			errs = append(errs, ErrNoCredentials)
		}
		if c.MLXBase == "" {
			errs = append(errs, ErrNoBaseURL)
		}
	}
	if c.MLXLauncher == "" {
		errs = append(errs, ErrNoLauncher)
	}

	switch c.BrowserType {
	case "mimic", "stealthfox":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrBrowserType, c.BrowserType))
	}

	switch c.Output.Backend {
	case BackendCSV, BackendNDJSON, BackendSQLite:
	case BackendPostgres:
		if c.Output.DSN == "" {
			errs = append(errs, ErrNoDSN)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrBackend, c.Output.Backend))
	}

	if c.Proxy.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("PROXY.MAX_ATTEMPTS: %w", ErrInvalidAttempts))
	}
	if c.Search.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH.MAX_ATTEMPTS: %w", ErrInvalidAttempts))
	}
	if c.Search.StepDelay < 0 {
		errs = append(errs, ErrInvalidDelay)
	}

	if _, err := fingerprint.ParseProfile(c.HTTP.TLSProfile); err != nil {
		errs = append(errs, fmt.Errorf("HTTP.TLS_PROFILE: %w", err))
	}
	if _, err := fingerprint.DefaultFlags().WithOverrides(c.Browser.Flags); err != nil {
		errs = append(errs, fmt.Errorf("BROWSER.FLAGS: %w", err))
	}

	return errors.Join(errs...)
}
