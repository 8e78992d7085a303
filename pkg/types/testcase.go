package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadySealed is returned when a sealed test case is classified again
var ErrAlreadySealed = errors.New("test case already sealed")

// CategoryInjection is the attack category of every SQL-injection test case
const CategoryInjection = "injection"

// Result is the verdict of one probe
type Result string

// Results
const (
	ResultPending Result = ""
	ResultFail    Result = "FAIL"
	ResultSuccess Result = "SUCCESS"
)

// Severity of a verdict
type Severity string

// Severities
const (
	SeverityZero Severity = "ZERO"
	SeverityHigh Severity = "HIGH"
)

// Sweep names one attack family pass across all endpoints
type Sweep string

// Sweeps
const (
	SweepQuery Sweep = "query"
	SweepPath  Sweep = "path"
	SweepBody  Sweep = "body"
)

// AllSweeps lists sweeps in their default run order
var AllSweeps = []Sweep{SweepQuery, SweepPath, SweepBody}

// TestTarget returns the test target label recorded on every test case of the sweep
func (s Sweep) TestTarget() string {
	switch s {
	case SweepQuery:
		return "sql_injection__query_parameters"
	case SweepPath:
		return "sql_injection__path_parameters"
	case SweepBody:
		return "sql_injection__request_payload"
	}
	return "sql_injection__" + string(s)
}

// Descriptor is a fully formed request ready for dispatch.
// Fields are unexported so a descriptor cannot change after construction.
type Descriptor struct {
	method   Method
	url      string
	body     interface{}
	baseURL  string
	path     string
	sweep    Sweep
	endpoint string
}

// NewDescriptor builds an immutable descriptor for a request derived from ep
func NewDescriptor(ep *Endpoint, sweep Sweep, url string, body interface{}) Descriptor {
	return Descriptor{
		method:   ep.Method,
		url:      url,
		body:     body,
		baseURL:  ep.BaseURL,
		path:     ep.Path,
		sweep:    sweep,
		endpoint: ep.String(),
	}
}

// Method returns the HTTP method
func (d Descriptor) Method() Method { return d.method }

// URL returns the fully qualified, possibly malicious, URL
func (d Descriptor) URL() string { return d.url }

// Body returns the JSON body value, nil when the request has none
func (d Descriptor) Body() interface{} { return d.body }

// HasBody reports whether a JSON body is sent
func (d Descriptor) HasBody() bool { return d.body != nil }

// BaseURL returns the endpoint origin
func (d Descriptor) BaseURL() string { return d.baseURL }

// Path returns the endpoint path template
func (d Descriptor) Path() string { return d.path }

// Sweep returns the attack family that produced the descriptor
func (d Descriptor) Sweep() Sweep { return d.sweep }

// Endpoint returns "METHOD baseURL+path" of the source endpoint
func (d Descriptor) Endpoint() string { return d.endpoint }

// TestCase is the outcome of executing one descriptor
type TestCase struct {
	ID          string      `json:"id" yaml:"id"`
	Category    string      `json:"category" yaml:"category"`
	TestTarget  string      `json:"test_target" yaml:"test_target"`
	Method      Method      `json:"method" yaml:"method"`
	URL         string      `json:"url" yaml:"url"`
	BaseURL     string      `json:"base_url" yaml:"base_url"`
	Path        string      `json:"path" yaml:"path"`
	Payload     interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
	Result      Result      `json:"result" yaml:"result"`
	Severity    Severity    `json:"severity" yaml:"severity"`
	StatusCode  int         `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error       string      `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at" yaml:"started_at"`
	EndedAt     time.Time   `json:"ended_at" yaml:"ended_at"`
	sealed      bool
	description Descriptor
}

// NewTestCase starts a test case for a descriptor being dispatched now
func NewTestCase(d Descriptor) *TestCase {
	return &TestCase{
		ID:          uuid.New().String(),
		Category:    CategoryInjection,
		TestTarget:  d.Sweep().TestTarget(),
		Method:      d.Method(),
		URL:         d.URL(),
		BaseURL:     d.BaseURL(),
		Path:        d.Path(),
		Payload:     d.Body(),
		StartedAt:   time.Now(),
		description: d,
	}
}

// Descriptor returns the request the test case was created for
func (tc *TestCase) Descriptor() Descriptor {
	return tc.description
}

// Seal fixes the verdict and the end timestamp. A sealed case never changes.
func (tc *TestCase) Seal(result Result, severity Severity) error {
	if tc.sealed {
		return ErrAlreadySealed
	}
	tc.Result = result
	tc.Severity = severity
	tc.EndedAt = time.Now()
	tc.sealed = true
	return nil
}

// Sealed reports whether a verdict has been assigned
func (tc *TestCase) Sealed() bool {
	return tc.sealed
}

// Failed reports whether the verdict is FAIL
func (tc *TestCase) Failed() bool {
	return tc.Result == ResultFail
}

// Duration returns the time between dispatch and classification
func (tc *TestCase) Duration() time.Duration {
	if tc.EndedAt.IsZero() {
		return 0
	}
	return tc.EndedAt.Sub(tc.StartedAt)
}
