package fuzzer

import (
	"context"
	"sync"

	"github.com/su1ph3r/fencer/pkg/types"
)

// DryRunSimulator stands in for the Executor and records what would be sent
// without making requests. Every simulated probe is sealed SUCCESS/ZERO.
type DryRunSimulator struct {
	mu      sync.Mutex
	results []SimulateResult
}

// NewDryRunSimulator creates a simulator for dry run mode
func NewDryRunSimulator() *DryRunSimulator {
	return &DryRunSimulator{}
}

// SimulateResult describes a request that would be sent
type SimulateResult struct {
	Endpoint   string      `json:"endpoint" yaml:"endpoint"`
	Sweep      types.Sweep `json:"sweep" yaml:"sweep"`
	Method     string      `json:"method" yaml:"method"`
	URL        string      `json:"url" yaml:"url"`
	Body       interface{} `json:"body,omitempty" yaml:"body,omitempty"`
	TestTarget string      `json:"test_target" yaml:"test_target"`
}

// Run records the descriptor. It still rejects descriptors the real
// executor could not build, so the plan matches a real scan.
func (d *DryRunSimulator) Run(ctx context.Context, desc types.Descriptor) (*types.TestCase, error) {
	probe := &Executor{session: &Session{}, limiter: NewRateLimiter(0)}
	if _, _, err := probe.buildRequest(ctx, desc); err != nil {
		return nil, err
	}

	tc := types.NewTestCase(desc)
	tc.Seal(types.ResultSuccess, types.SeverityZero)

	d.mu.Lock()
	d.results = append(d.results, SimulateResult{
		Endpoint:   desc.Endpoint(),
		Sweep:      desc.Sweep(),
		Method:     desc.Method().String(),
		URL:        desc.URL(),
		Body:       desc.Body(),
		TestTarget: tc.TestTarget,
	})
	d.mu.Unlock()

	return tc, nil
}

// Results returns the recorded requests in dispatch order
func (d *DryRunSimulator) Results() []SimulateResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SimulateResult, len(d.results))
	copy(out, d.results)
	return out
}

// GroupByEndpoint groups simulation results by endpoint
func (d *DryRunSimulator) GroupByEndpoint(results []SimulateResult) map[string][]SimulateResult {
	grouped := make(map[string][]SimulateResult)

	for _, r := range results {
		grouped[r.Endpoint] = append(grouped[r.Endpoint], r)
	}

	return grouped
}

// DryRunSummary summarizes what would be tested
type DryRunSummary struct {
	TotalRequests   int                 `json:"total_requests" yaml:"total_requests"`
	UniqueEndpoints int                 `json:"unique_endpoints" yaml:"unique_endpoints"`
	BySweep         map[types.Sweep]int `json:"by_sweep" yaml:"by_sweep"`
	ByEndpoint      map[string]int      `json:"by_endpoint" yaml:"by_endpoint"`
}

// GetSummary returns a summary of the dry run
func (d *DryRunSimulator) GetSummary(results []SimulateResult) *DryRunSummary {
	summary := &DryRunSummary{
		TotalRequests: len(results),
		BySweep:       make(map[types.Sweep]int),
		ByEndpoint:    make(map[string]int),
	}

	for _, r := range results {
		summary.BySweep[r.Sweep]++
		summary.ByEndpoint[r.Endpoint]++
	}

	summary.UniqueEndpoints = len(summary.ByEndpoint)

	return summary
}
