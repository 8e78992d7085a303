// Package types provides core data structures for fencer
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Errors
var (
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")
	ErrNoJSONBody        = errors.New("endpoint has no application/json request body schema")
)

// ContentTypeJSON is the only request body content type the body sweep targets
const ContentTypeJSON = "application/json"

// Parameter locations
const (
	InQuery  = "query"
	InPath   = "path"
	InHeader = "header"
	InCookie = "cookie"
)

// Endpoint represents one API operation
type Endpoint struct {
	Method      Method       `json:"method" yaml:"method"`
	Path        string       `json:"path" yaml:"path"`
	BaseURL     string       `json:"base_url" yaml:"base_url"`
	Parameters  []Parameter  `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Body        *RequestBody `json:"body,omitempty" yaml:"body,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	OperationID string       `json:"operation_id,omitempty" yaml:"operation_id,omitempty"`
}

// Parameter represents an API parameter
type Parameter struct {
	Name        string      `json:"name" yaml:"name"`
	In          string      `json:"in" yaml:"in"` // query, path, header, cookie
	Required    bool        `json:"required" yaml:"required"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Schema      *Schema     `json:"schema,omitempty" yaml:"schema,omitempty"`
	Example     interface{} `json:"example,omitempty" yaml:"example,omitempty"`
}

// RequestBody represents the request body configuration
type RequestBody struct {
	ContentType string  `json:"content_type" yaml:"content_type"`
	Required    bool    `json:"required" yaml:"required"`
	Schema      *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// FullPath returns the complete URL template for the endpoint
func (e *Endpoint) FullPath() string {
	return e.BaseURL + e.Path
}

// String returns "METHOD baseURL+path"
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s %s", e.Method, e.FullPath())
}

// RequiredQueryParams returns required query parameters in declaration order
func (e *Endpoint) RequiredQueryParams() []Parameter {
	return e.queryParams(true)
}

// OptionalQueryParams returns optional query parameters in declaration order
func (e *Endpoint) OptionalQueryParams() []Parameter {
	return e.queryParams(false)
}

func (e *Endpoint) queryParams(required bool) []Parameter {
	var params []Parameter
	for _, p := range e.Parameters {
		if p.In == InQuery && p.Required == required {
			params = append(params, p)
		}
	}
	return params
}

// HasRequiredQueryParams reports whether any required query parameter is declared
func (e *Endpoint) HasRequiredQueryParams() bool {
	return len(e.RequiredQueryParams()) > 0
}

// HasOptionalQueryParams reports whether any optional query parameter is declared
func (e *Endpoint) HasOptionalQueryParams() bool {
	return len(e.OptionalQueryParams()) > 0
}

// PathParamNames returns placeholder names in order of appearance in Path
func (e *Endpoint) PathParamNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(e.Path, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// HasPathParams reports whether the path template contains placeholders
func (e *Endpoint) HasPathParams() bool {
	return strings.Contains(e.Path, "{") && len(e.PathParamNames()) > 0
}

// PathParam returns the declared path parameter with the given name, if any.
// Placeholders without a declaration are treated as untyped strings.
func (e *Endpoint) PathParam(name string) Parameter {
	for _, p := range e.Parameters {
		if p.In == InPath && p.Name == name {
			return p
		}
	}
	return Parameter{Name: name, In: InPath, Required: true, Schema: &Schema{Type: KindString}}
}

// HasRequestBody reports whether the endpoint declares a request body
func (e *Endpoint) HasRequestBody() bool {
	return e.Body != nil
}

// JSONBodySchema returns the application/json body schema or ErrNoJSONBody
func (e *Endpoint) JSONBodySchema() (*Schema, error) {
	if e.Body == nil || e.Body.Schema == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoJSONBody, e)
	}
	if !strings.EqualFold(e.Body.ContentType, ContentTypeJSON) {
		return nil, fmt.Errorf("%w: %s declares %q", ErrNoJSONBody, e, e.Body.ContentType)
	}
	return e.Body.Schema, nil
}

// Method is an HTTP verb supported by the probe executor
type Method string

// Supported methods
const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Methods lists every supported method
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead, MethodOptions}

// ParseMethod normalizes and validates an HTTP method name
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
}

// String returns the method name
func (m Method) String() string {
	return string(m)
}
