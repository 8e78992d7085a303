package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/su1ph3r/fencer/pkg/types"
)

func sealedCase(t *testing.T, sweep types.Sweep, result types.Result) *types.TestCase {
	t.Helper()
	ep := &types.Endpoint{Method: types.MethodGet, BaseURL: "http://api.test", Path: "/x"}
	tc := types.NewTestCase(types.NewDescriptor(ep, sweep, "http://api.test/x", nil))
	severity := types.SeverityZero
	if result == types.ResultFail {
		severity = types.SeverityHigh
	}
	require.NoError(t, tc.Seal(result, severity))
	return tc
}

func TestCollector_ObserveProbe(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	c.ObserveProbe(sealedCase(t, types.SweepQuery, types.ResultFail))
	c.ObserveProbe(sealedCase(t, types.SweepQuery, types.ResultSuccess))
	c.ObserveProbe(sealedCase(t, types.SweepQuery, types.ResultSuccess))
	c.ObserveGenerationError(types.SweepPath)
	c.ObserveEndpoint(types.SweepBody, types.StatusPassed)
	c.ObserveEndpoint(types.SweepBody, types.StatusVulnerable)
	c.ObserveEndpoint(types.SweepBody, types.StatusIncomplete)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.probesTotal.WithLabelValues("query", "FAIL")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.probesTotal.WithLabelValues("query", "SUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generationErrors.WithLabelValues("path")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.endpointsTotal.WithLabelValues("body", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.endpointsTotal.WithLabelValues("body", "vulnerable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.endpointsTotal.WithLabelValues("body", "incomplete")))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveProbe(sealedCase(t, types.SweepQuery, types.ResultFail))
		c.ObserveGenerationError(types.SweepQuery)
		c.ObserveEndpoint(types.SweepQuery, types.StatusPassed)
	})
}

func TestCollector_Handler(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	c.ObserveProbe(sealedCase(t, types.SweepBody, types.ResultFail))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `fencer_probes_total{result="FAIL",sweep="body"} 1`), body)
	assert.Contains(t, body, "fencer_probe_duration_seconds")
}
