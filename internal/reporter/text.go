package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/su1ph3r/fencer/pkg/types"
)

var (
	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2)

	summaryLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Width(20)

	verdictFailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)

	verdictSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("46")).
				Bold(true)
)

// TextReporter generates human-readable text reports
type TextReporter struct {
	options ReportOptions
	fail    *color.Color
	warn    *color.Color
	pass    *color.Color
	header  *color.Color
}

// NewTextReporter creates a new text reporter
func NewTextReporter(options ReportOptions) *TextReporter {
	r := &TextReporter{
		options: options,
		fail:    color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow),
		pass:    color.New(color.FgGreen),
		header:  color.New(color.FgCyan, color.Bold),
	}
	if options.NoColor {
		r.fail.DisableColor()
		r.warn.DisableColor()
		r.pass.DisableColor()
		r.header.DisableColor()
	}
	return r
}

// Format returns the format name
func (r *TextReporter) Format() string {
	return "text"
}

// Extension returns the file extension
func (r *TextReporter) Extension() string {
	return "txt"
}

// Generate generates a text report
func (r *TextReporter) Generate(result *types.ScanResult) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the text report to a writer
func (r *TextReporter) Write(result *types.ScanResult, w io.Writer) error {
	r.writeHeader(w, result)
	r.writeSummary(w, result)

	for i := range result.Sweeps {
		r.writeSweep(w, &result.Sweeps[i])
	}

	r.writeFooter(w, result)
	return nil
}

func (r *TextReporter) writeHeader(w io.Writer, result *types.ScanResult) {
	v := r.options.Version
	if v == "" {
		v = "unknown"
	}
	title := r.options.Title
	if title == "" {
		title = DefaultOptions().Title
	}
	fmt.Fprintf(w, "\n")
	r.header.Fprintf(w, "%s (fencer %s)\n", title, v)
	fmt.Fprintf(w, "Scan report for %s\n", result.Target)
	fmt.Fprintf(w, "Scan ID %s, started at %s\n", result.ScanID, result.StartTime.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeSummary(w io.Writer, result *types.ScanResult) {
	verdict := string(Verdict(result))
	if !r.options.NoColor {
		if result.Failed() {
			verdict = verdictFailStyle.Render(verdict)
		} else {
			verdict = verdictSuccessStyle.Render(verdict)
		}
	}

	rows := []struct {
		label string
		value string
	}{
		{"Verdict", verdict},
		{"Endpoints", fmt.Sprintf("%d", result.Endpoints)},
		{"Injection tests", fmt.Sprintf("%d", result.TotalProbes)},
		{"Failures", fmt.Sprintf("%d", result.TotalFailures)},
		{"Generation errors", fmt.Sprintf("%d", result.GenerationErrors())},
		{"Duration", formatDuration(result.Duration)},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, summaryLabelStyle.Render(row.label), row.value))
	}

	fmt.Fprintln(w, summaryBoxStyle.Render(strings.Join(lines, "\n")))
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeSweep(w io.Writer, s *types.SweepResult) {
	r.header.Fprintf(w, "%s SWEEP\n", strings.ToUpper(string(s.Sweep)))
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	fmt.Fprintf(w, "%d injection tests, %d failures\n", s.Probes, len(s.Failures))

	for _, ep := range s.Endpoints {
		if ep.Passed() && !r.options.Verbose {
			continue
		}
		fmt.Fprintf(w, "    %s %s\n", ep.Endpoint, r.marker(ep))
	}

	for i := range s.Failures {
		r.writeFailure(w, &s.Failures[i])
	}

	for _, ge := range s.GenerationErrors {
		fmt.Fprintf(w, "[SKIPPED] %s\n", ge.Endpoint)
		fmt.Fprintf(w, "    Error:      %s\n", ge.Error)
	}

	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeFailure(w io.Writer, tc *types.TestCase) {
	r.fail.Fprintf(w, "[%s] %s %s\n", tc.Severity, tc.Method, tc.URL)
	fmt.Fprintf(w, "    Target:     %s\n", tc.TestTarget)
	if tc.StatusCode > 0 {
		fmt.Fprintf(w, "    Response:   %d\n", tc.StatusCode)
	}
	if tc.Error != "" {
		msg := tc.Error
		if len(msg) > 200 {
			msg = msg[:197] + "..."
		}
		fmt.Fprintf(w, "    Error:      %s\n", msg)
	}

	curlCmd := GenerateCurlCommand(tc, r.options.Curl)
	if !r.options.Verbose && len(curlCmd) > 160 {
		curlCmd = curlCmd[:157] + "..."
	}
	fmt.Fprintf(w, "    Replicate:  %s\n", curlCmd)
}

func (r *TextReporter) marker(ep types.EndpointSummary) string {
	switch ep.Status() {
	case types.StatusPassed:
		return r.pass.Sprint("✅")
	case types.StatusIncomplete:
		return r.warn.Sprintf("⚠️ (%d errors)", ep.Errors)
	}
	return r.fail.Sprint("🚨")
}

func (r *TextReporter) writeFooter(w io.Writer, result *types.ScanResult) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	fmt.Fprintf(w, "Scan completed at %s\n", result.EndTime.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "fencer done: %d endpoints, %d injection tests, %d failures\n",
		result.Endpoints,
		result.TotalProbes,
		result.TotalFailures)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", hours, mins)
}
