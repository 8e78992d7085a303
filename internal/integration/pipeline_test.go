//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/su1ph3r/fencer/internal/fuzzer"
	"github.com/su1ph3r/fencer/internal/logging"
	"github.com/su1ph3r/fencer/internal/metrics"
	"github.com/su1ph3r/fencer/internal/parser"
	"github.com/su1ph3r/fencer/internal/payloads"
	"github.com/su1ph3r/fencer/internal/reporter"
	"github.com/su1ph3r/fencer/internal/sqli"
	"github.com/su1ph3r/fencer/pkg/types"
)

// minimalOpenAPISpec has one endpoint per sweep: a query parameter, a path
// parameter and a JSON request body.
const minimalOpenAPISpec = `openapi: "3.0.0"
info:
  title: Test API
  version: "1.0"
servers:
  - url: REPLACE_BASE_URL
paths:
  /users/{user_id}:
    get:
      operationId: getUser
      summary: Get user by ID
      parameters:
        - name: user_id
          in: path
          required: true
          schema:
            type: string
            example: "123"
      responses:
        "200":
          description: OK
  /search:
    get:
      operationId: searchItems
      summary: Search items
      parameters:
        - name: q
          in: query
          required: true
          schema:
            type: string
            example: "test"
      responses:
        "200":
          description: OK
  /login:
    post:
      operationId: loginUser
      summary: User login
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              properties:
                username:
                  type: string
                password:
                  type: string
              required:
                - username
                - password
      responses:
        "200":
          description: OK
`

// testServer concatenates quoted input into SQL on /search and /login and
// fails with a 500 whenever a single quote reaches it. /users is safe.
func testServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query, _ := url.QueryUnescape(r.URL.RawQuery)
		body, _ := io.ReadAll(r.Body)

		switch {
		case strings.HasPrefix(r.URL.Path, "/search") && strings.Contains(query, "'"):
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": "SQL syntax error near MySQL: Unclosed quotation mark after the character string"}`)
			return
		case r.URL.Path == "/login" && strings.Contains(string(body), "'"):
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": "unterminated quoted string"}`)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status": "ok"}`)
	}))
}

// TestFullPipeline exercises the complete scan pipeline end-to-end:
// parse -> generate descriptors -> probe -> aggregate -> report.
func TestFullPipeline(t *testing.T) {
	// --- 1. Start test server ---
	ts := testServer()
	defer ts.Close()

	// --- 2. Write OpenAPI spec to temp file with server URL injected ---
	specContent := strings.Replace(minimalOpenAPISpec, "REPLACE_BASE_URL", ts.URL, 1)
	tmpDir := t.TempDir()
	specFile := filepath.Join(tmpDir, "api.yaml")
	if err := os.WriteFile(specFile, []byte(specContent), 0644); err != nil {
		t.Fatalf("failed to write spec file: %v", err)
	}

	// --- 3. Parse the OpenAPI spec ---
	endpoints, err := parser.ParseFile(specFile, "")
	if err != nil {
		t.Fatalf("failed to parse spec: %v", err)
	}

	endpointPaths := make(map[string]bool)
	for _, ep := range endpoints {
		endpointPaths[ep.Method.String()+":"+ep.Path] = true
		t.Logf("  %s (params: %d)", ep.String(), len(ep.Parameters))
	}
	for _, want := range []string{"GET:/users/{user_id}", "GET:/search", "POST:/login"} {
		if !endpointPaths[want] {
			t.Errorf("expected endpoint %s not found in parsed results", want)
		}
	}

	// --- 4. Wire the executor the way the CLI does ---
	cfg := *types.DefaultConfig()
	cfg.Scan.Timeout = 10 * time.Second
	cfg.Scan.RateLimit = 100
	cfg.HTTP.Headers["X-Scan"] = "integration"

	collector, err := metrics.New()
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	reqLogFile := filepath.Join(tmpDir, "requests.json")
	reqLog, err := fuzzer.NewRequestLogger(reqLogFile)
	if err != nil {
		t.Fatalf("NewRequestLogger: %v", err)
	}

	executor := fuzzer.NewExecutor(
		fuzzer.NewHTTPClient(cfg),
		cfg.HTTP,
		fuzzer.WithRateLimiter(fuzzer.NewRateLimiter(cfg.Scan.RateLimit)),
		fuzzer.WithRequestLogger(reqLog),
		fuzzer.WithMetrics(collector),
		fuzzer.WithLogger(logging.Nop()),
	)

	// A single strategy makes every verdict deterministic
	catalog, err := payloads.NewCatalog([]string{"' OR 1=1 --"})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	var progress bytes.Buffer
	runner := sqli.NewRunner(endpoints, executor, catalog,
		sqli.WithSeed(7),
		sqli.WithProgress(reporter.NewConsoleProgress(&progress, true, true)),
		sqli.WithMetrics(collector),
		sqli.WithLogger(logging.Nop()),
	)

	// --- 5. Run all sweeps ---
	result, err := runner.RunAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if err := reqLog.Close(); err != nil {
		t.Fatalf("request log close: %v", err)
	}

	t.Logf("Progress:\n%s", progress.String())

	if runner.Probes() != 3 {
		t.Errorf("Probes() = %d, want 3 (query, path, body)", runner.Probes())
	}
	if result.TotalFailures != 2 {
		t.Errorf("TotalFailures = %d, want 2 (/search and /login)", result.TotalFailures)
	}
	if !result.Failed() {
		t.Error("expected the scan to fail")
	}
	for _, tc := range result.Failures() {
		if tc.Path == "/users/{user_id}" {
			t.Errorf("safe endpoint reported as failing: %s", tc.URL)
		}
	}
	if reqLog.Count() != 3 {
		t.Errorf("request log entries = %d, want 3", reqLog.Count())
	}
	if !strings.Contains(progress.String(), "GET "+ts.URL+"/search 🚨") {
		t.Errorf("progress is missing the vulnerable /search line")
	}
	if !strings.Contains(progress.String(), "GET "+ts.URL+"/users/{user_id} ✅") {
		t.Errorf("progress is missing the safe /users line")
	}

	// --- 6. Write JSON report ---
	jsonReporter, err := reporter.NewReporter("json", reporter.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to create JSON reporter: %v", err)
	}

	reportFile := filepath.Join(tmpDir, "report.json")
	if err := reporter.WriteToFile(jsonReporter, result, reportFile); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	// --- 7. Verify JSON report content ---
	reportData, err := os.ReadFile(reportFile)
	if err != nil {
		t.Fatalf("failed to read report file: %v", err)
	}
	var reportObj map[string]interface{}
	if err := json.Unmarshal(reportData, &reportObj); err != nil {
		t.Fatalf("failed to unmarshal report JSON: %v", err)
	}

	for _, field := range []string{"scan_id", "target", "verdict", "sweeps", "injection_tests"} {
		if _, ok := reportObj[field]; !ok {
			t.Errorf("report JSON missing field %q", field)
		}
	}
	if reportObj["verdict"] != "FAIL" {
		t.Errorf("verdict = %v, want FAIL", reportObj["verdict"])
	}
	if reportObj["target"] != ts.URL {
		t.Errorf("target = %v, want %s", reportObj["target"], ts.URL)
	}
}

// TestPlanMatchesScan checks that a dry run lists exactly the requests a scan sends
func TestPlanMatchesScan(t *testing.T) {
	specContent := strings.Replace(minimalOpenAPISpec, "REPLACE_BASE_URL", "http://api.invalid", 1)
	specFile := filepath.Join(t.TempDir(), "api.yaml")
	if err := os.WriteFile(specFile, []byte(specContent), 0644); err != nil {
		t.Fatalf("failed to write spec file: %v", err)
	}

	endpoints, err := parser.ParseFile(specFile, "")
	if err != nil {
		t.Fatalf("failed to parse spec: %v", err)
	}

	sim := fuzzer.NewDryRunSimulator()
	runner := sqli.NewRunner(endpoints, sim, payloads.DefaultSQLi(), sqli.WithSeed(1))
	result, err := runner.RunAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	n := payloads.DefaultSQLi().Len()
	want := n + n + 1 // /search query, /users path, /login body
	if got := len(sim.Results()); got != want {
		t.Errorf("planned requests = %d, want %d", got, want)
	}
	if result.Failed() {
		t.Error("a dry run never fails")
	}

	var buf bytes.Buffer
	if err := reporter.WritePlan(&buf, sim, "text"); err != nil {
		t.Fatalf("WritePlan: %v", err)
	}
	if !strings.Contains(buf.String(), fmt.Sprintf("%d requests across 3 endpoints", want)) {
		t.Errorf("unexpected plan header:\n%s", buf.String())
	}
}
