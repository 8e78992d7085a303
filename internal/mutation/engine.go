// Package mutation turns one well-formed endpoint description into
// maliciously mutated URLs and request bodies.
package mutation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/su1ph3r/fencer/internal/payloads"
	"github.com/su1ph3r/fencer/internal/synth"
	"github.com/su1ph3r/fencer/pkg/types"
)

// ErrNoPathParams is yielded when path mutation is requested for an endpoint without placeholders
var ErrNoPathParams = errors.New("endpoint has no path parameters")

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Engine generates mutated request parts for a single endpoint.
// Engines are not safe for concurrent use; create one per endpoint stream.
type Engine struct {
	endpoint *types.Endpoint
	synth    synth.Synthesizer
	catalog  *payloads.Catalog
	rng      *rand.Rand
}

// NewEngine creates a mutation engine. A nil rng draws body strategies
// from the global random source.
func NewEngine(endpoint *types.Endpoint, s synth.Synthesizer, catalog *payloads.Catalog, rng *rand.Rand) *Engine {
	return &Engine{
		endpoint: endpoint,
		synth:    s,
		catalog:  catalog,
		rng:      rng,
	}
}

// Endpoint returns the endpoint the engine mutates
func (e *Engine) Endpoint() *types.Endpoint {
	return e.endpoint
}

// safeValue renders one synthesized value as URL text
func (e *Engine) safeValue(schema *types.Schema) (string, error) {
	v, err := e.synth.Generate(schema)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return fmt.Sprint(v), nil
}

// renderPath substitutes every placeholder. The placeholder named target,
// if any, receives value verbatim; all others receive safe values.
func (e *Engine) renderPath(target, value string) (string, error) {
	var firstErr error
	path := placeholderRe.ReplaceAllStringFunc(e.endpoint.Path, func(m string) string {
		name := m[1 : len(m)-1]
		if name == target {
			return value
		}
		safe, err := e.safeValue(e.endpoint.PathParam(name).Schema)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("path parameter %s: %w", name, err)
			}
			return m
		}
		return safe
	})
	if firstErr != nil {
		return "", firstErr
	}
	return path, nil
}

// safeQuery renders name=value pairs for params, skipping the one named skip
func (e *Engine) safeQuery(params []types.Parameter, skip string) (string, error) {
	pairs := make([]string, 0, len(params))
	for _, p := range params {
		if p.Name == skip {
			continue
		}
		v, err := e.safeValue(p.Schema)
		if err != nil {
			return "", fmt.Errorf("query parameter %s: %w", p.Name, err)
		}
		pairs = append(pairs, p.Name+"="+v)
	}
	return strings.Join(pairs, "&"), nil
}

// joinQuery appends query terms with '?' before the first and '&' between the rest
func joinQuery(base string, terms ...string) string {
	var parts []string
	for _, t := range terms {
		if t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return base
	}
	return base + "?" + strings.Join(parts, "&")
}
