// Package parser loads API descriptions into endpoints
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/su1ph3r/fencer/pkg/types"
)

// Parser defines the interface for API description parsers
type Parser interface {
	// Parse parses the input and returns a slice of endpoints
	Parse() ([]types.Endpoint, error)
}

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidInput      = errors.New("invalid input")
	ErrFileNotFound      = errors.New("file not found")
	ErrParseFailed       = errors.New("failed to parse input")
)

// NewParser creates a parser for the input file. A non-empty baseURL
// replaces the server URL declared in the document.
func NewParser(filePath string, baseURL string) (Parser, error) {
	if filePath == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrInvalidInput)
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".json", ".yaml", ".yml":
		return NewOpenAPIParser(filePath, baseURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
	}
}

// ParseFile parses one API description
func ParseFile(filePath, baseURL string) ([]types.Endpoint, error) {
	p, err := NewParser(filePath, baseURL)
	if err != nil {
		return nil, err
	}
	endpoints, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return deduplicateEndpoints(endpoints), nil
}

// deduplicateEndpoints removes duplicate endpoints, keeping the first
func deduplicateEndpoints(endpoints []types.Endpoint) []types.Endpoint {
	seen := make(map[string]bool)
	var unique []types.Endpoint

	for _, ep := range endpoints {
		key := ep.Method.String() + ":" + ep.BaseURL + ep.Path
		if !seen[key] {
			seen[key] = true
			unique = append(unique, ep)
		}
	}

	return unique
}

// NormalizePath normalizes a URL path
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == "/" {
		return path
	}
	return strings.TrimSuffix(path, "/")
}
