// Package fuzzer sends probe requests and classifies the responses
package fuzzer

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/su1ph3r/fencer/internal/logging"
	"github.com/su1ph3r/fencer/internal/metrics"
	"github.com/su1ph3r/fencer/pkg/types"
)

// ErrBuildRequest is returned when a descriptor cannot be turned into an HTTP request.
// It is a generation error, not a verdict.
var ErrBuildRequest = errors.New("failed to build request")

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// requestBuilder creates the request for one HTTP method
type requestBuilder func(ctx context.Context, target string, body io.Reader) (*http.Request, error)

func builderFor(method string) requestBuilder {
	return func(ctx context.Context, target string, body io.Reader) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, method, target, body)
	}
}

// dispatchTable maps every supported method to its request builder
var dispatchTable = map[types.Method]requestBuilder{
	types.MethodGet:     builderFor(http.MethodGet),
	types.MethodPost:    builderFor(http.MethodPost),
	types.MethodPut:     builderFor(http.MethodPut),
	types.MethodPatch:   builderFor(http.MethodPatch),
	types.MethodDelete:  builderFor(http.MethodDelete),
	types.MethodHead:    builderFor(http.MethodHead),
	types.MethodOptions: builderFor(http.MethodOptions),
}

// Executor performs exactly one network call per descriptor
type Executor struct {
	client    Doer
	userAgent string
	session   *Session
	limiter   *RateLimiter
	reqLog    *RequestLogger
	metrics   *metrics.Collector
	logger    *zap.SugaredLogger
}

// Option configures an Executor
type Option func(*Executor)

// WithRateLimiter shares a rate limiter across all probes
func WithRateLimiter(rl *RateLimiter) Option {
	return func(e *Executor) { e.limiter = rl }
}

// WithRequestLogger records every probe to a JSON log file
func WithRequestLogger(l *RequestLogger) Option {
	return func(e *Executor) { e.reqLog = l }
}

// WithMetrics observes every sealed probe
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Executor) { e.metrics = c }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor that sends requests through client
func NewExecutor(client Doer, settings types.HTTPSettings, opts ...Option) *Executor {
	e := &Executor{
		client:    client,
		userAgent: settings.UserAgent,
		session:   NewSession(settings),
		limiter:   NewRateLimiter(0),
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewHTTPClient builds the HTTP client used for probing
func NewHTTPClient(config types.Config) *http.Client {
	conns := config.Scan.Concurrency
	if conns < 1 {
		conns = 1
	}

	transport := &http.Transport{
		MaxIdleConns:        conns * 2,
		MaxIdleConnsPerHost: conns,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !config.Scan.VerifySSL,
		},
	}

	if config.HTTP.ProxyURL != "" {
		proxyURL, err := url.Parse(config.HTTP.ProxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Scan.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !config.Scan.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= config.Scan.MaxRedirects {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// Run sends the descriptor and returns the sealed test case.
// Transport errors, timeouts and 5xx responses are FAIL/HIGH; any other
// response is SUCCESS/ZERO. A descriptor that cannot be built returns
// ErrBuildRequest and no test case.
func (e *Executor) Run(ctx context.Context, d types.Descriptor) (*types.TestCase, error) {
	req, bodyStr, err := e.buildRequest(ctx, d)
	if err != nil {
		return nil, err
	}

	tc := types.NewTestCase(d)
	var resp *probeResponse

	if err := e.limiter.Wait(ctx); err != nil {
		tc.Error = err.Error()
		tc.Seal(types.ResultFail, types.SeverityHigh)
	} else {
		resp, err = e.send(req)
		e.classify(tc, resp, err)
	}

	e.metrics.ObserveProbe(tc)
	if err := e.reqLog.Log(tc, bodyStr, resp); err != nil {
		e.logger.Warnw("Failed to write request log", "error", err)
	}
	e.logger.Debugw("Probe finished",
		"id", tc.ID,
		"method", tc.Method,
		"url", tc.URL,
		"result", tc.Result,
		"status", tc.StatusCode,
		"duration", tc.Duration(),
	)

	return tc, nil
}

// buildRequest builds the HTTP request for a descriptor.
// Returns the request and the encoded body for evidence capture.
func (e *Executor) buildRequest(ctx context.Context, d types.Descriptor) (*http.Request, string, error) {
	build, ok := dispatchTable[d.Method()]
	if !ok {
		return nil, "", fmt.Errorf("%w: %w: %q", ErrBuildRequest, types.ErrUnsupportedMethod, d.Method())
	}

	target, err := url.Parse(requote(d.URL()))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrBuildRequest, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, "", fmt.Errorf("%w: %q is not an absolute URL", ErrBuildRequest, d.URL())
	}

	var body io.Reader
	var bodyStr string
	if d.HasBody() {
		data, err := json.Marshal(d.Body())
		if err != nil {
			return nil, "", fmt.Errorf("%w: encode body: %w", ErrBuildRequest, err)
		}
		bodyStr = string(data)
		body = stringReader(bodyStr)
	}

	req, err := build(ctx, target.String(), body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrBuildRequest, err)
	}

	e.session.Apply(req)

	if req.Header.Get("User-Agent") == "" && e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	if d.HasBody() {
		req.Header.Set("Content-Type", types.ContentTypeJSON)
	}

	return req, bodyStr, nil
}

// send performs the single network call. No retries.
func (e *Executor) send(req *http.Request) (*probeResponse, error) {
	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}

	pr, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	pr.ResponseTime = time.Since(start)
	return pr, nil
}

// classify seals the test case from the call outcome
func (e *Executor) classify(tc *types.TestCase, resp *probeResponse, err error) {
	if err != nil {
		tc.Error = err.Error()
		tc.Seal(types.ResultFail, types.SeverityHigh)
		return
	}

	tc.StatusCode = resp.StatusCode
	if resp.StatusCode >= http.StatusInternalServerError {
		tc.Seal(types.ResultFail, types.SeverityHigh)
		return
	}
	tc.Seal(types.ResultSuccess, types.SeverityZero)
}
