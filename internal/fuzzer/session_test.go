package fuzzer

import (
	"net/http"
	"testing"

	"github.com/su1ph3r/fencer/pkg/types"
)

func TestSessionHeaders(t *testing.T) {
	tests := []struct {
		name string
		auth string
		want string
	}{
		{"bearer", "Bearer abc", "Bearer abc"},
		{"bearer with prefix", "Authorization: bearer abc", "Bearer abc"},
		{"basic", "Basic dXNlcjpwYXNz", "Basic dXNlcjpwYXNz"},
		{"other scheme kept raw", "Token abc", "Token abc"},
		{"raw token", "abc", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(types.HTTPSettings{AuthHeader: tt.auth})
			if got := s.Headers()["Authorization"]; got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionApply(t *testing.T) {
	s := NewSession(types.HTTPSettings{
		Headers: map[string]string{"X-Tenant": "acme"},
		Cookies: map[string]string{"b": "2", "a": "1"},
	})

	req, err := http.NewRequest(http.MethodGet, "http://api.test/", nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Apply(req)

	if got := req.Header.Get("X-Tenant"); got != "acme" {
		t.Errorf("X-Tenant = %q", got)
	}
	if got := req.Header.Get("Cookie"); got != "a=1; b=2" {
		t.Errorf("Cookie = %q, want sorted pairs", got)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}

func TestSessionIsolatedFromSettings(t *testing.T) {
	settings := types.HTTPSettings{Headers: map[string]string{"X-A": "1"}}
	s := NewSession(settings)
	settings.Headers["X-A"] = "2"

	if got := s.Headers()["X-A"]; got != "1" {
		t.Errorf("X-A = %q, session must copy settings", got)
	}
}
