package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/su1ph3r/fencer/internal/fuzzer"
	"github.com/su1ph3r/fencer/pkg/types"
)

// Plan is the dry-run listing of every request a scan would send
type Plan struct {
	Summary  *fuzzer.DryRunSummary   `json:"summary" yaml:"summary"`
	Requests []fuzzer.SimulateResult `json:"requests" yaml:"requests"`
}

// WritePlan writes a dry-run plan in the given format
func WritePlan(w io.Writer, sim *fuzzer.DryRunSimulator, format string) error {
	results := sim.Results()
	plan := Plan{
		Summary:  sim.GetSummary(results),
		Requests: results,
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return err
		}
		return enc.Close()
	case "text", "txt", "":
		return writePlanText(w, sim, plan)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writePlanText(w io.Writer, sim *fuzzer.DryRunSimulator, plan Plan) error {
	fmt.Fprintf(w, "%d requests across %d endpoints\n", plan.Summary.TotalRequests, plan.Summary.UniqueEndpoints)
	for _, s := range types.AllSweeps {
		if n, ok := plan.Summary.BySweep[s]; ok {
			fmt.Fprintf(w, "  %-6s %d\n", s, n)
		}
	}
	fmt.Fprintf(w, "\n")

	grouped := sim.GroupByEndpoint(plan.Requests)
	endpoints := make([]string, 0, len(grouped))
	for ep := range grouped {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	for _, ep := range endpoints {
		fmt.Fprintf(w, "%s\n", ep)
		for _, r := range grouped[ep] {
			fmt.Fprintf(w, "    [%s] %s %s\n", r.Sweep, r.Method, r.URL)
			if r.Body != nil {
				body, err := json.Marshal(r.Body)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "        body: %s\n", body)
			}
		}
	}
	return nil
}
