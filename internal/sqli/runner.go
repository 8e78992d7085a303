// Package sqli orchestrates the SQL injection sweeps over every endpoint
package sqli

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/su1ph3r/fencer/internal/logging"
	"github.com/su1ph3r/fencer/internal/metrics"
	"github.com/su1ph3r/fencer/internal/mutation"
	"github.com/su1ph3r/fencer/internal/payloads"
	"github.com/su1ph3r/fencer/internal/synth"
	"github.com/su1ph3r/fencer/pkg/types"
)

// ErrUnknownSweep is returned for a sweep name the runner does not implement
var ErrUnknownSweep = errors.New("unknown sweep")

// Prober executes one descriptor. *fuzzer.Executor and *fuzzer.DryRunSimulator satisfy it.
type Prober interface {
	Run(ctx context.Context, d types.Descriptor) (*types.TestCase, error)
}

// Progress receives sweep progress. Endpoints are reported in declaration
// order whatever the concurrency.
type Progress interface {
	SweepStarted(sweep types.Sweep, endpoints int)
	EndpointDone(sweep types.Sweep, endpoint *types.Endpoint, summary types.EndpointSummary, failures []types.TestCase)
	SweepDone(result *types.SweepResult)
}

type nopProgress struct{}

func (nopProgress) SweepStarted(types.Sweep, int) {}

func (nopProgress) EndpointDone(types.Sweep, *types.Endpoint, types.EndpointSummary, []types.TestCase) {}

func (nopProgress) SweepDone(*types.SweepResult) {}

// Runner runs the query, path and body sweeps
type Runner struct {
	endpoints   []types.Endpoint
	prober      Prober
	catalog     *payloads.Catalog
	synth       synth.Factory
	seed        uint64
	concurrency int
	progress    Progress
	metrics     *metrics.Collector
	logger      *zap.SugaredLogger

	probes atomic.Int64
}

// Option configures a Runner
type Option func(*Runner)

// WithSynthFactory replaces the safe value synthesizer
func WithSynthFactory(f synth.Factory) Option {
	return func(r *Runner) { r.synth = f }
}

// WithSeed makes safe values and body strategies reproducible. 0 means random.
func WithSeed(seed uint64) Option {
	return func(r *Runner) { r.seed = seed }
}

// WithConcurrency sets how many endpoints are probed at once
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithProgress sets the progress callback
func WithProgress(p Progress) Option {
	return func(r *Runner) { r.progress = p }
}

// WithMetrics records generation errors and endpoint outcomes
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner over endpoints
func NewRunner(endpoints []types.Endpoint, prober Prober, catalog *payloads.Catalog, opts ...Option) *Runner {
	r := &Runner{
		endpoints:   endpoints,
		prober:      prober,
		catalog:     catalog,
		synth:       synth.FakeFactory,
		concurrency: 1,
		progress:    nopProgress{},
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = payloads.DefaultSQLi()
	}
	return r
}

// Probes returns the number of probes executed so far across all sweeps
func (r *Runner) Probes() int {
	return int(r.probes.Load())
}

// SweepQueryParams probes every endpoint through its query parameters
func (r *Runner) SweepQueryParams(ctx context.Context) (*types.SweepResult, error) {
	return r.sweep(ctx, types.SweepQuery)
}

// SweepPathParams probes every endpoint with path placeholders through them
func (r *Runner) SweepPathParams(ctx context.Context) (*types.SweepResult, error) {
	return r.sweep(ctx, types.SweepPath)
}

// SweepRequestBodies sends one body-injected request to every endpoint that declares a body
func (r *Runner) SweepRequestBodies(ctx context.Context) (*types.SweepResult, error) {
	return r.sweep(ctx, types.SweepBody)
}

// RunAll runs the given sweeps in order and aggregates them.
// On cancellation the partial result is returned with the context error.
func (r *Runner) RunAll(ctx context.Context, sweeps []types.Sweep) (*types.ScanResult, error) {
	if len(sweeps) == 0 {
		sweeps = types.AllSweeps
	}
	for _, s := range sweeps {
		if !knownSweep(s) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSweep, s)
		}
	}

	result := &types.ScanResult{
		ScanID:    uuid.New().String(),
		StartTime: time.Now(),
		Endpoints: len(r.endpoints),
	}
	if len(r.endpoints) > 0 {
		result.Target = r.endpoints[0].BaseURL
	}

	var err error
	for _, s := range sweeps {
		var sr *types.SweepResult
		sr, err = r.sweep(ctx, s)
		if sr != nil {
			result.AddSweep(*sr)
		}
		if err != nil {
			break
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result, err
}

func knownSweep(s types.Sweep) bool {
	for _, known := range types.AllSweeps {
		if s == known {
			return true
		}
	}
	return false
}

// endpointOutcome is what one endpoint contributes to a sweep
type endpointOutcome struct {
	summary  types.EndpointSummary
	failures []types.TestCase
	errors   []types.GenerationError
	err      error
}

// started reports whether the endpoint sent or skipped anything
func (o endpointOutcome) started() bool {
	return o.err == nil || o.summary.Probes > 0 || o.summary.Errors > 0
}

func (r *Runner) sweep(ctx context.Context, s types.Sweep) (*types.SweepResult, error) {
	if !knownSweep(s) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSweep, s)
	}

	var targets []int
	for i := range r.endpoints {
		if eligible(s, &r.endpoints[i]) {
			targets = append(targets, i)
		}
	}

	r.logger.Infow("Starting sweep", "sweep", s, "endpoints", len(targets))
	r.progress.SweepStarted(s, len(targets))

	result := &types.SweepResult{Sweep: s, Failures: []types.TestCase{}}
	var sweepErr error

	collect := func(idx int, out endpointOutcome) {
		ep := &r.endpoints[idx]
		result.Probes += out.summary.Probes
		result.Failures = append(result.Failures, out.failures...)
		result.GenerationErrors = append(result.GenerationErrors, out.errors...)
		result.Endpoints = append(result.Endpoints, out.summary)
		r.metrics.ObserveEndpoint(s, out.summary.Status())
		r.progress.EndpointDone(s, ep, out.summary, out.failures)
	}

	if r.concurrency <= 1 {
		for _, idx := range targets {
			out := r.runEndpoint(ctx, s, idx)
			if out.started() {
				collect(idx, out)
			}
			if out.err != nil {
				sweepErr = out.err
				break
			}
		}
	} else {
		sweepErr = r.runParallel(ctx, s, targets, collect)
	}

	r.progress.SweepDone(result)
	r.logger.Infow("Sweep finished",
		"sweep", s,
		"probes", result.Probes,
		"failures", len(result.Failures),
		"generation_errors", len(result.GenerationErrors),
	)

	return result, sweepErr
}

// runParallel probes endpoints concurrently and hands outcomes to collect in target order
func (r *Runner) runParallel(ctx context.Context, s types.Sweep, targets []int, collect func(int, endpointOutcome)) error {
	outcomes := make([]endpointOutcome, len(targets))
	done := make([]chan struct{}, len(targets))
	for i := range done {
		done[i] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	go func() {
		for i, idx := range targets {
			g.Go(func() error {
				defer close(done[i])
				outcomes[i] = r.runEndpoint(gctx, s, idx)
				return outcomes[i].err
			})
		}
	}()

	// every request already sent stays in the result, even after cancellation
	var firstErr error
	for i, idx := range targets {
		<-done[i]
		if outcomes[i].started() {
			collect(idx, outcomes[i])
		}
		if outcomes[i].err != nil && firstErr == nil {
			firstErr = outcomes[i].err
		}
	}

	if err := g.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// runEndpoint sends every descriptor of one endpoint in sequence
func (r *Runner) runEndpoint(ctx context.Context, s types.Sweep, idx int) endpointOutcome {
	ep := &r.endpoints[idx]
	out := endpointOutcome{summary: types.EndpointSummary{Endpoint: ep.String()}}
	engine := r.engineFor(idx, ep)

	for d, err := range r.descriptors(s, engine) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			out.err = ctxErr
			return out
		}
		if err != nil {
			r.recordGenerationError(&out, s, ep, err)
			continue
		}

		tc, err := r.prober.Run(ctx, d)
		if err != nil {
			r.recordGenerationError(&out, s, ep, err)
			continue
		}
		// a request cut short by cancellation is not a verdict
		if ctxErr := ctx.Err(); ctxErr != nil && tc.Failed() && tc.StatusCode == 0 {
			out.err = ctxErr
			return out
		}

		r.probes.Add(1)
		out.summary.Probes++
		if tc.Failed() {
			out.failures = append(out.failures, *tc)
			out.summary.Failures++
		}
	}

	return out
}

func (r *Runner) recordGenerationError(out *endpointOutcome, s types.Sweep, ep *types.Endpoint, err error) {
	r.logger.Warnw("Skipping request that could not be generated",
		"sweep", s,
		"endpoint", ep.String(),
		"error", err,
	)
	r.metrics.ObserveGenerationError(s)
	out.summary.Errors++
	out.errors = append(out.errors, types.GenerationError{
		Sweep:     s,
		Endpoint:  ep.String(),
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

// engineFor gives every endpoint its own synthesizer and random stream
func (r *Runner) engineFor(idx int, ep *types.Endpoint) *mutation.Engine {
	var rng *rand.Rand
	synthSeed := uint64(0)
	if r.seed != 0 {
		rng = rand.New(rand.NewPCG(r.seed, uint64(idx)))
		synthSeed = r.seed + uint64(idx+1)*0x9E3779B97F4A7C15
	}
	return mutation.NewEngine(ep, r.synth(synthSeed), r.catalog, rng)
}

// eligible reports whether the sweep targets the endpoint
func eligible(s types.Sweep, ep *types.Endpoint) bool {
	switch s {
	case types.SweepPath:
		return ep.HasPathParams()
	case types.SweepBody:
		return ep.HasRequestBody()
	}
	return true
}

// descriptors yields the requests of one endpoint for a sweep
func (r *Runner) descriptors(s types.Sweep, engine *mutation.Engine) iter.Seq2[types.Descriptor, error] {
	ep := engine.Endpoint()

	switch s {
	case types.SweepBody:
		return func(yield func(types.Descriptor, error) bool) {
			safeURL, err := engine.SafeURL()
			if err != nil {
				yield(types.Descriptor{}, err)
				return
			}
			body, err := engine.GenerateUnsafeRequestBody()
			if err != nil {
				yield(types.Descriptor{}, err)
				return
			}
			yield(types.NewDescriptor(ep, s, safeURL, body), nil)
		}

	case types.SweepPath:
		return withSafeBody(s, engine, engine.MutatedPathParamURLs())
	}

	return withSafeBody(s, engine, engine.MutatedQueryParamURLs())
}

// withSafeBody pairs every mutated URL with a fresh safe JSON body when the
// endpoint declares one. Endpoints without a JSON body send none.
func withSafeBody(s types.Sweep, engine *mutation.Engine, urls iter.Seq2[string, error]) iter.Seq2[types.Descriptor, error] {
	ep := engine.Endpoint()
	_, jsonErr := ep.JSONBodySchema()
	hasJSONBody := jsonErr == nil

	return func(yield func(types.Descriptor, error) bool) {
		for u, err := range urls {
			if err != nil {
				if !yield(types.Descriptor{}, err) {
					return
				}
				continue
			}

			var body interface{}
			if hasJSONBody {
				body, err = engine.GenerateSafeRequestBody()
				if err != nil {
					if !yield(types.Descriptor{}, fmt.Errorf("safe body: %w", err)) {
						return
					}
					continue
				}
			}

			if !yield(types.NewDescriptor(ep, s, u, body), nil) {
				return
			}
		}
	}
}
