// Package reporter provides output formatting for scan results
package reporter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/su1ph3r/fencer/pkg/types"
)

// ErrUnsupportedFormat is returned for an unknown report format
var ErrUnsupportedFormat = errors.New("unsupported report format")

// Reporter interface for generating reports
type Reporter interface {
	// Generate generates a report from scan results
	Generate(result *types.ScanResult) ([]byte, error)

	// Write writes the report to a writer
	Write(result *types.ScanResult, w io.Writer) error

	// Format returns the report format name
	Format() string

	// Extension returns the file extension for this format
	Extension() string
}

// NewReporter creates a reporter based on format
func NewReporter(format string, options ReportOptions) (Reporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONReporter(options), nil
	case "yaml", "yml":
		return NewYAMLReporter(options), nil
	case "text", "txt", "":
		return NewTextReporter(options), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ReportOptions contains options for report generation
type ReportOptions struct {
	IncludeConfig bool        // Include scan configuration
	Verbose       bool        // List every endpoint, not only vulnerable ones
	NoColor       bool        // Plain text output
	Title         string      // Custom report title
	Version       string      // Tool version shown in the text header
	Curl          CurlOptions // Flags for reproduction commands
}

// DefaultOptions returns default report options
func DefaultOptions() ReportOptions {
	return ReportOptions{
		IncludeConfig: true,
		Title:         "Fencer SQL Injection Report",
	}
}

// WriteToFile writes a report to a file
func WriteToFile(reporter Reporter, result *types.ScanResult, filename string) error {
	// Ensure directory exists
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return reporter.Write(result, file)
}

// Verdict returns FAIL when any probe failed and SUCCESS otherwise
func Verdict(result *types.ScanResult) types.Result {
	if result.Failed() {
		return types.ResultFail
	}
	return types.ResultSuccess
}

// Document is the structured report shared by the JSON and YAML formats
type Document struct {
	ScanID           string            `json:"scan_id" yaml:"scan_id"`
	Target           string            `json:"target" yaml:"target"`
	Verdict          types.Result      `json:"verdict" yaml:"verdict"`
	StartTime        string            `json:"start_time" yaml:"start_time"`
	EndTime          string            `json:"end_time" yaml:"end_time"`
	Duration         string            `json:"duration" yaml:"duration"`
	Endpoints        int               `json:"endpoints_scanned" yaml:"endpoints_scanned"`
	InjectionTests   int               `json:"injection_tests" yaml:"injection_tests"`
	TotalFailures    int               `json:"total_failures" yaml:"total_failures"`
	GenerationErrors int               `json:"generation_errors" yaml:"generation_errors"`
	Sweeps           []SweepDocument   `json:"sweeps" yaml:"sweeps"`
	Config           *types.ScanConfig `json:"config,omitempty" yaml:"config,omitempty"`
}

// SweepDocument is one sweep section of a Document
type SweepDocument struct {
	Sweep            types.Sweep             `json:"sweep" yaml:"sweep"`
	Probes           int                     `json:"probes" yaml:"probes"`
	Endpoints        []EndpointDocument      `json:"endpoints" yaml:"endpoints"`
	Failures         []FailureDocument       `json:"failures" yaml:"failures"`
	GenerationErrors []types.GenerationError `json:"generation_errors,omitempty" yaml:"generation_errors,omitempty"`
}

// EndpointDocument is an endpoint summary with its verdict spelled out
type EndpointDocument struct {
	types.EndpointSummary `yaml:",inline"`
	Status                types.EndpointStatus `json:"status" yaml:"status"`
}

// FailureDocument is a failing test case with its reproduction command
type FailureDocument struct {
	types.TestCase `yaml:",inline"`
	CurlCommand    string `json:"curl_command" yaml:"curl_command"`
}

// NewDocument builds the structured report for a scan
func NewDocument(result *types.ScanResult, options ReportOptions) *Document {
	doc := &Document{
		ScanID:           result.ScanID,
		Target:           result.Target,
		Verdict:          Verdict(result),
		StartTime:        result.StartTime.Format(time.RFC3339),
		EndTime:          result.EndTime.Format(time.RFC3339),
		Duration:         result.Duration.String(),
		Endpoints:        result.Endpoints,
		InjectionTests:   result.TotalProbes,
		TotalFailures:    result.TotalFailures,
		GenerationErrors: result.GenerationErrors(),
		Sweeps:           make([]SweepDocument, 0, len(result.Sweeps)),
	}

	for _, s := range result.Sweeps {
		sd := SweepDocument{
			Sweep:            s.Sweep,
			Probes:           s.Probes,
			Endpoints:        make([]EndpointDocument, 0, len(s.Endpoints)),
			Failures:         make([]FailureDocument, 0, len(s.Failures)),
			GenerationErrors: s.GenerationErrors,
		}
		for _, ep := range s.Endpoints {
			sd.Endpoints = append(sd.Endpoints, EndpointDocument{EndpointSummary: ep, Status: ep.Status()})
		}
		for i := range s.Failures {
			sd.Failures = append(sd.Failures, FailureDocument{
				TestCase:    s.Failures[i],
				CurlCommand: GenerateCurlCommand(&s.Failures[i], options.Curl),
			})
		}
		doc.Sweeps = append(doc.Sweeps, sd)
	}

	if options.IncludeConfig {
		doc.Config = result.Config
	}

	return doc
}
