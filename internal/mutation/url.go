package mutation

import (
	"fmt"
	"iter"

	"github.com/su1ph3r/fencer/pkg/types"
)

// SafeURL returns the otherwise-safe URL of the endpoint: every path
// placeholder and every required query parameter carries a safe value.
func (e *Engine) SafeURL() (string, error) {
	path, err := e.renderPath("", "")
	if err != nil {
		return "", err
	}
	query, err := e.safeQuery(e.endpoint.RequiredQueryParams(), "")
	if err != nil {
		return "", err
	}
	return joinQuery(e.endpoint.BaseURL+path, query), nil
}

// MutatedQueryParamURLs yields URLs in which exactly one query parameter
// carries an injection string. Required parameters come first, then
// optional ones behind a fully safe required prefix. A URL that cannot be
// built is yielded as an error and the sequence moves on.
func (e *Engine) MutatedQueryParamURLs() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		required := e.endpoint.RequiredQueryParams()
		optional := e.endpoint.OptionalQueryParams()

		for _, p := range required {
			for _, strategy := range e.catalog.All() {
				if !yield(e.requiredQueryURL(required, p, strategy)) {
					return
				}
			}
		}

		for _, p := range optional {
			for _, strategy := range e.catalog.All() {
				if !yield(e.optionalQueryURL(required, optional, p, strategy)) {
					return
				}
			}
		}
	}
}

func (e *Engine) requiredQueryURL(required []types.Parameter, target types.Parameter, strategy string) (string, error) {
	path, err := e.renderPath("", "")
	if err != nil {
		return "", err
	}
	others, err := e.safeQuery(required, target.Name)
	if err != nil {
		return "", err
	}
	return joinQuery(e.endpoint.BaseURL+path, target.Name+"="+strategy, others), nil
}

func (e *Engine) optionalQueryURL(required, optional []types.Parameter, target types.Parameter, strategy string) (string, error) {
	path, err := e.renderPath("", "")
	if err != nil {
		return "", err
	}
	prefix, err := e.safeQuery(required, "")
	if err != nil {
		return "", err
	}
	others, err := e.safeQuery(optional, target.Name)
	if err != nil {
		return "", err
	}
	return joinQuery(e.endpoint.BaseURL+path, prefix, target.Name+"="+strategy, others), nil
}

// MutatedPathParamURLs yields URLs in which exactly one path placeholder is
// replaced by an injection string and every other placeholder is safe.
// When the endpoint has required query parameters the same mutated paths
// are yielded a second time with a safe required query string appended.
func (e *Engine) MutatedPathParamURLs() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		names := e.endpoint.PathParamNames()
		if len(names) == 0 {
			yield("", fmt.Errorf("%w: %s", ErrNoPathParams, e.endpoint))
			return
		}

		var mutated []string
		for _, name := range names {
			for _, strategy := range e.catalog.All() {
				path, err := e.renderPath(name, strategy)
				if err != nil {
					if !yield("", err) {
						return
					}
					continue
				}
				u := e.endpoint.BaseURL + path
				mutated = append(mutated, u)
				if !yield(u, nil) {
					return
				}
			}
		}

		required := e.endpoint.RequiredQueryParams()
		if len(required) == 0 {
			return
		}
		for _, u := range mutated {
			query, err := e.safeQuery(required, "")
			if err != nil {
				if !yield("", err) {
					return
				}
				continue
			}
			if !yield(joinQuery(u, query), nil) {
				return
			}
		}
	}
}
