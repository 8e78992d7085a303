package types

import (
	"time"
)

// GenerationError records a descriptor that could not be built.
// It is neither a FAIL nor a SUCCESS verdict.
type GenerationError struct {
	Sweep     Sweep     `json:"sweep" yaml:"sweep"`
	Endpoint  string    `json:"endpoint" yaml:"endpoint"`
	Error     string    `json:"error" yaml:"error"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// EndpointSummary is the single pass/fail line reported per endpoint and sweep
type EndpointSummary struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Probes   int    `json:"probes" yaml:"probes"`
	Failures int    `json:"failures" yaml:"failures"`
	Errors   int    `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// EndpointStatus is the verdict of one endpoint within a sweep
type EndpointStatus string

const (
	// StatusPassed means every request was sent and none failed
	StatusPassed EndpointStatus = "passed"
	// StatusVulnerable means at least one request failed
	StatusVulnerable EndpointStatus = "vulnerable"
	// StatusIncomplete means no request failed but some could not be generated
	StatusIncomplete EndpointStatus = "incomplete"
)

// Status classifies the endpoint. Failures take precedence over errors.
func (s EndpointSummary) Status() EndpointStatus {
	switch {
	case s.Failures > 0:
		return StatusVulnerable
	case s.Errors > 0:
		return StatusIncomplete
	}
	return StatusPassed
}

// Passed reports whether the endpoint was fully tested without a failure
func (s EndpointSummary) Passed() bool {
	return s.Status() == StatusPassed
}

// SweepResult aggregates one sweep over all endpoints
type SweepResult struct {
	Sweep            Sweep             `json:"sweep" yaml:"sweep"`
	Probes           int               `json:"probes" yaml:"probes"`
	Failures         []TestCase        `json:"failures" yaml:"failures"`
	GenerationErrors []GenerationError `json:"generation_errors,omitempty" yaml:"generation_errors,omitempty"`
	Endpoints        []EndpointSummary `json:"endpoints" yaml:"endpoints"`
}

// ScanResult contains the complete scan results
type ScanResult struct {
	ScanID        string        `json:"scan_id" yaml:"scan_id"`
	Target        string        `json:"target" yaml:"target"`
	StartTime     time.Time     `json:"start_time" yaml:"start_time"`
	EndTime       time.Time     `json:"end_time" yaml:"end_time"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	Endpoints     int           `json:"endpoints_scanned" yaml:"endpoints_scanned"`
	Sweeps        []SweepResult `json:"sweeps" yaml:"sweeps"`
	TotalProbes   int           `json:"total_probes" yaml:"total_probes"`
	TotalFailures int           `json:"total_failures" yaml:"total_failures"`
	Config        *ScanConfig   `json:"config,omitempty" yaml:"config,omitempty"`
}

// ScanConfig captures the configuration used for the scan
type ScanConfig struct {
	InputFile   string   `json:"input_file" yaml:"input_file"`
	Sweeps      []string `json:"sweeps" yaml:"sweeps"`
	Concurrency int      `json:"concurrency" yaml:"concurrency"`
	RateLimit   float64  `json:"rate_limit" yaml:"rate_limit"`
	Timeout     int      `json:"timeout" yaml:"timeout"`
	Seed        uint64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	Catalog     int      `json:"catalog_size" yaml:"catalog_size"`
}

// AddSweep appends a sweep result and updates the totals
func (r *ScanResult) AddSweep(s SweepResult) {
	r.Sweeps = append(r.Sweeps, s)
	r.TotalProbes += s.Probes
	r.TotalFailures += len(s.Failures)
}

// Failed reports whether any FAIL outcome was recorded across all sweeps
func (r *ScanResult) Failed() bool {
	return r.TotalFailures > 0
}

// Failures returns all failing test cases across sweeps
func (r *ScanResult) Failures() []TestCase {
	var all []TestCase
	for _, s := range r.Sweeps {
		all = append(all, s.Failures...)
	}
	return all
}

// GenerationErrors returns the number of descriptors that could not be built
func (r *ScanResult) GenerationErrors() int {
	n := 0
	for _, s := range r.Sweeps {
		n += len(s.GenerationErrors)
	}
	return n
}
