package reporter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/su1ph3r/fencer/pkg/types"
)

// CurlOptions provides options for curl command generation
type CurlOptions struct {
	IncludeVerbose  bool              // Add -v flag
	IncludeInsecure bool              // Add -k flag for SSL bypass
	MaxTime         int               // Timeout in seconds
	ProxyURL        string            // Add --proxy
	UserAgent       string            // Custom user agent
	Headers         map[string]string // Extra headers sent with every request
}

// GenerateCurlCommand generates a curl command replaying a test case
func GenerateCurlCommand(tc *types.TestCase, opts CurlOptions) string {
	if tc == nil {
		return ""
	}

	var parts []string
	parts = append(parts, "curl")

	// Optional flags
	if opts.IncludeVerbose {
		parts = append(parts, "-v")
	}
	if opts.IncludeInsecure {
		parts = append(parts, "-k")
	}
	if opts.MaxTime > 0 {
		parts = append(parts, "--max-time", fmt.Sprintf("%d", opts.MaxTime))
	}
	if opts.ProxyURL != "" {
		parts = append(parts, "--proxy", shellEscape(opts.ProxyURL))
	}
	if opts.UserAgent != "" {
		parts = append(parts, "-A", shellEscape(opts.UserAgent))
	}

	// Method (only add if not GET)
	if tc.Method != "" && tc.Method != types.MethodGet {
		parts = append(parts, "-X", tc.Method.String())
	}

	// Headers (sorted for consistency)
	if len(opts.Headers) > 0 {
		headerNames := make([]string, 0, len(opts.Headers))
		for name := range opts.Headers {
			headerNames = append(headerNames, name)
		}
		sort.Strings(headerNames)

		for _, name := range headerNames {
			// Skip headers that curl handles automatically
			lowerName := strings.ToLower(name)
			if lowerName == "content-length" || lowerName == "host" || lowerName == "content-type" {
				continue
			}
			parts = append(parts, "-H", shellEscape(fmt.Sprintf("%s: %s", name, opts.Headers[name])))
		}
	}

	// Body
	if tc.Payload != nil {
		if body, err := json.Marshal(tc.Payload); err == nil {
			parts = append(parts, "-H", shellEscape("Content-Type: "+types.ContentTypeJSON))
			parts = append(parts, "-d", shellEscape(string(body)))
		}
	}

	// URL (always last). curl would drop everything after a literal '#'.
	parts = append(parts, shellEscape(strings.ReplaceAll(tc.URL, "#", "%23")))

	return strings.Join(parts, " ")
}

// shellEscape safely escapes a string for use in POSIX shell commands.
// Injection strategies routinely carry quotes and semicolons, so anything
// outside a small whitelist is single-quoted.
func shellEscape(s string) string {
	if s == "" {
		return "''"
	}

	if isSafeString(s) {
		return s
	}

	// ' -> '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// isSafeString returns true if the string only contains safe characters
// that don't require escaping in shell commands
func isSafeString(s string) bool {
	for _, c := range s {
		if (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '.' || c == '-' || c == '_' || c == '/' || c == ':' {
			continue
		}
		return false
	}
	return true
}
