package types

import (
	"time"
)

// Config represents the application configuration
type Config struct {
	// Scan settings
	Scan ScanSettings `yaml:"scan" mapstructure:"scan"`

	// HTTP settings
	HTTP HTTPSettings `yaml:"http" mapstructure:"http"`

	// Attack settings
	Attacks AttackSettings `yaml:"attacks" mapstructure:"attacks"`

	// Output settings
	Output OutputSettings `yaml:"output" mapstructure:"output"`

	// Log settings
	Log LogSettings `yaml:"log" mapstructure:"log"`

	// Metrics settings
	Metrics MetricsSettings `yaml:"metrics" mapstructure:"metrics"`
}

// ScanSettings holds scan configuration
type ScanSettings struct {
	Concurrency     int           `yaml:"concurrency" mapstructure:"concurrency"` // endpoints probed in parallel
	RateLimit       float64       `yaml:"rate_limit" mapstructure:"rate_limit"`   // requests per second, 0 = unlimited
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Seed            uint64        `yaml:"seed" mapstructure:"seed"` // 0 = fresh random source
	FollowRedirects bool          `yaml:"follow_redirects" mapstructure:"follow_redirects"`
	MaxRedirects    int           `yaml:"max_redirects" mapstructure:"max_redirects"`
	VerifySSL       bool          `yaml:"verify_ssl" mapstructure:"verify_ssl"`
	Sweeps          []string      `yaml:"sweeps" mapstructure:"sweeps"` // empty = all
}

// HTTPSettings holds HTTP client configuration
type HTTPSettings struct {
	ProxyURL   string            `yaml:"proxy_url" mapstructure:"proxy_url"`
	Headers    map[string]string `yaml:"headers" mapstructure:"headers"`
	Cookies    map[string]string `yaml:"cookies" mapstructure:"cookies"`
	UserAgent  string            `yaml:"user_agent" mapstructure:"user_agent"`
	AuthHeader string            `yaml:"auth_header" mapstructure:"auth_header"`
}

// AttackSettings holds attack configuration
type AttackSettings struct {
	CatalogFile string `yaml:"catalog_file" mapstructure:"catalog_file"` // YAML list replacing the built-in catalog
}

// OutputSettings holds output configuration
type OutputSettings struct {
	Format     string `yaml:"format" mapstructure:"format"` // text, json, yaml
	File       string `yaml:"file" mapstructure:"file"`
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose"`
	Color      bool   `yaml:"color" mapstructure:"color"`
	RequestLog string `yaml:"request_log" mapstructure:"request_log"` // JSON log of every probe
}

// LogSettings holds structured logger configuration
type LogSettings struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// MetricsSettings holds Prometheus exposition configuration
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanSettings{
			Concurrency:     1,
			RateLimit:       0,
			Timeout:         30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    5,
			VerifySSL:       true,
		},
		HTTP: HTTPSettings{
			UserAgent: "fencer/1.0 (SQL Injection Prober)",
			Headers:   make(map[string]string),
			Cookies:   make(map[string]string),
		},
		Output: OutputSettings{
			Format: "text",
			Color:  true,
		},
		Log: LogSettings{
			Level:  "warn",
			Format: "console",
		},
		Metrics: MetricsSettings{
			Listen: ":9090",
			Path:   "/metrics",
		},
	}
}

// EnabledSweeps returns the configured sweeps, defaulting to all of them
func (s ScanSettings) EnabledSweeps() []Sweep {
	if len(s.Sweeps) == 0 {
		return AllSweeps
	}
	var sweeps []Sweep
	for _, name := range s.Sweeps {
		sweeps = append(sweeps, Sweep(name))
	}
	return sweeps
}
