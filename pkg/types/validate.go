package types

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ConfigValidator validates configuration settings
type ConfigValidator struct {
	errors ValidationErrors
}

// NewConfigValidator creates a new config validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// Validate performs validation of the config
func (v *ConfigValidator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	v.validateScanSettings(config.Scan)
	v.validateHTTPSettings(config.HTTP)
	v.validateAttackSettings(config.Attacks)
	v.validateOutputSettings(config.Output)
	v.validateLogSettings(config.Log)

	return v.errors
}

func (v *ConfigValidator) addError(field, message string, value interface{}) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

func (v *ConfigValidator) validateScanSettings(s ScanSettings) {
	if s.Concurrency < 1 {
		v.addError("scan.concurrency", "must be at least 1", s.Concurrency)
	}
	if s.Concurrency > 100 {
		v.addError("scan.concurrency", "should not exceed 100 to avoid overwhelming targets", s.Concurrency)
	}

	if s.RateLimit < 0 {
		v.addError("scan.rate_limit", "cannot be negative", s.RateLimit)
	}

	if s.Timeout < 0 {
		v.addError("scan.timeout", "cannot be negative", s.Timeout)
	}
	if s.Timeout > 5*time.Minute {
		v.addError("scan.timeout", "timeout exceeds 5 minutes which may cause issues", s.Timeout)
	}

	if s.MaxRedirects < 0 {
		v.addError("scan.max_redirects", "cannot be negative", s.MaxRedirects)
	}

	for _, name := range s.Sweeps {
		switch Sweep(name) {
		case SweepQuery, SweepPath, SweepBody:
		default:
			v.addError("scan.sweeps", "unknown sweep (query, path, body)", name)
		}
	}
}

func (v *ConfigValidator) validateHTTPSettings(h HTTPSettings) {
	if h.ProxyURL != "" {
		if _, err := url.Parse(h.ProxyURL); err != nil {
			v.addError("http.proxy_url", "invalid URL format", h.ProxyURL)
		}
	}

	if h.UserAgent == "" {
		v.addError("http.user_agent", "should not be empty", h.UserAgent)
	}
}

func (v *ConfigValidator) validateAttackSettings(a AttackSettings) {
	if a.CatalogFile != "" {
		if _, err := os.Stat(a.CatalogFile); os.IsNotExist(err) {
			v.addError("attacks.catalog_file", "file does not exist", a.CatalogFile)
		}
	}
}

func (v *ConfigValidator) validateOutputSettings(o OutputSettings) {
	validFormats := map[string]bool{
		"json": true, "yaml": true, "yml": true, "text": true, "txt": true,
	}

	if o.Format != "" && !validFormats[o.Format] {
		v.addError("output.format", "unknown format", o.Format)
	}
}

func (v *ConfigValidator) validateLogSettings(l LogSettings) {
	if l.Format != "" && l.Format != "console" && l.Format != "json" {
		v.addError("log.format", "must be console or json", l.Format)
	}
}

// ValidateConfig is a convenience function to validate a config
func ValidateConfig(config *Config) error {
	validator := NewConfigValidator()
	errors := validator.Validate(config)
	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ValidateInputFile validates an input file exists and is readable
func ValidateInputFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, not a file: %s", path)
	}
	return nil
}

// ValidateURL validates a URL string
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
