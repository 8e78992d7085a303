package fuzzer

import (
	"net/http"
	"sort"
	"strings"

	"github.com/su1ph3r/fencer/pkg/types"
)

// Session holds the static headers, cookies and credentials applied to every probe.
// Probes never update it, so every request is independent of the others.
type Session struct {
	headers   map[string]string
	cookies   map[string]string
	authToken string
	authType  string
}

// NewSession creates a session from the HTTP settings
func NewSession(config types.HTTPSettings) *Session {
	s := &Session{
		headers: make(map[string]string),
		cookies: make(map[string]string),
	}

	for k, v := range config.Headers {
		s.headers[k] = v
	}
	for k, v := range config.Cookies {
		s.cookies[k] = v
	}

	if config.AuthHeader != "" {
		s.parseAuthHeader(config.AuthHeader)
	}

	return s
}

// Apply applies session state to an HTTP request
func (s *Session) Apply(req *http.Request) {
	for key, value := range s.Headers() {
		req.Header.Set(key, value)
	}
}

// Headers returns every header the session sets, credentials and cookies included
func (s *Session) Headers() map[string]string {
	out := make(map[string]string, len(s.headers)+2)
	for key, value := range s.headers {
		out[key] = value
	}

	if s.authToken != "" {
		switch s.authType {
		case "bearer":
			out["Authorization"] = "Bearer " + s.authToken
		case "basic":
			out["Authorization"] = "Basic " + s.authToken
		default:
			out["Authorization"] = s.authToken
		}
	}

	if len(s.cookies) > 0 {
		names := make([]string, 0, len(s.cookies))
		for name := range s.cookies {
			names = append(names, name)
		}
		sort.Strings(names)

		pairs := make([]string, 0, len(names))
		for _, name := range names {
			pairs = append(pairs, name+"="+s.cookies[name])
		}
		out["Cookie"] = strings.Join(pairs, "; ")
	}

	return out
}

// parseAuthHeader parses an authorization header
func (s *Session) parseAuthHeader(header string) {
	// Format: "Authorization: Bearer xxx" or just "Bearer xxx"
	header = strings.TrimPrefix(header, "Authorization:")
	header = strings.TrimSpace(header)

	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 {
		s.authType = strings.ToLower(parts[0])
		s.authToken = parts[1]
		if s.authType != "bearer" && s.authType != "basic" {
			s.authType = ""
			s.authToken = header
		}
	} else {
		// Assume it's a raw token
		s.authToken = header
	}
}
