package reporter

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/su1ph3r/fencer/pkg/types"
)

// ConsoleProgress prints one line per endpoint as each sweep advances
type ConsoleProgress struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	info    *color.Color
	ok      *color.Color
	warn    *color.Color
	alert   *color.Color
}

// NewConsoleProgress creates a progress printer writing to w
func NewConsoleProgress(w io.Writer, verbose, noColor bool) *ConsoleProgress {
	p := &ConsoleProgress{
		w:       w,
		verbose: verbose,
		info:    color.New(color.FgCyan),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		alert:   color.New(color.FgRed, color.Bold),
	}
	if noColor {
		p.info.DisableColor()
		p.ok.DisableColor()
		p.warn.DisableColor()
		p.alert.DisableColor()
	}
	return p
}

// SweepStarted announces a sweep
func (p *ConsoleProgress) SweepStarted(sweep types.Sweep, endpoints int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.info.Fprintf(p.w, "[*] %s: %d endpoints\n", sweep.TestTarget(), endpoints)
}

// EndpointDone prints "    METHOD baseURL+path" followed by the verdict marker.
// An endpoint with requests that could not be generated gets ⚠️ and the count.
func (p *ConsoleProgress) EndpointDone(sweep types.Sweep, ep *types.Endpoint, summary types.EndpointSummary, failures []types.TestCase) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "    %s ", ep)
	switch summary.Status() {
	case types.StatusPassed:
		p.ok.Fprintln(p.w, "✅")
		return
	case types.StatusIncomplete:
		p.warn.Fprintf(p.w, "⚠️ (%d errors)\n", summary.Errors)
		return
	}
	p.alert.Fprintln(p.w, "🚨")

	if p.verbose {
		for _, tc := range failures {
			status := tc.Error
			if tc.StatusCode > 0 {
				status = fmt.Sprintf("%d", tc.StatusCode)
			}
			fmt.Fprintf(p.w, "        %s %s (%s)\n", tc.Method, tc.URL, status)
		}
	}
}

// SweepDone prints the sweep totals
func (p *ConsoleProgress) SweepDone(result *types.SweepResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.ok
	if len(result.Failures) > 0 {
		c = p.alert
	}
	c.Fprintf(p.w, "[+] %s: %d injection tests, %d failures", result.Sweep, result.Probes, len(result.Failures))
	if n := len(result.GenerationErrors); n > 0 {
		c.Fprintf(p.w, ", %d skipped", n)
	}
	fmt.Fprintln(p.w)
}
