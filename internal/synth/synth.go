// Package synth generates schema-conformant, non-malicious values
// for parameters and bodies that are not under attack.
package synth

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/su1ph3r/fencer/pkg/types"
)

// ErrUnsupportedSchema is returned for schema shapes no value can be generated for
var ErrUnsupportedSchema = errors.New("unsupported schema")

// maxDepth bounds recursion through self-referencing schemas
const maxDepth = 12

// Synthesizer returns one schema-conformant safe value
type Synthesizer interface {
	Generate(schema *types.Schema) (interface{}, error)
}

// Factory builds a synthesizer for an independent random stream.
// Equal seeds yield equal value sequences; seed 0 means a fresh random source.
type Factory func(seed uint64) Synthesizer

// FakeSynthesizer generates values with gofakeit
type FakeSynthesizer struct {
	faker *gofakeit.Faker
}

// NewFake creates a gofakeit-backed synthesizer
func NewFake(seed uint64) *FakeSynthesizer {
	return &FakeSynthesizer{faker: gofakeit.New(seed)}
}

// FakeFactory is the default Factory
func FakeFactory(seed uint64) Synthesizer {
	return NewFake(seed)
}

// Generate returns one safe value for schema
func (s *FakeSynthesizer) Generate(schema *types.Schema) (interface{}, error) {
	return s.generate(schema, 0)
}

func (s *FakeSynthesizer) generate(schema *types.Schema, depth int) (interface{}, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrUnsupportedSchema, maxDepth)
	}

	schema = schema.Resolve()
	if schema == nil {
		return s.faker.Word(), nil
	}

	if schema.Example != nil {
		return schema.Example, nil
	}
	if schema.Default != nil {
		return schema.Default, nil
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[s.faker.IntRange(0, len(schema.Enum)-1)], nil
	}

	switch schema.Kind() {
	case types.KindObject:
		return s.object(schema, depth)
	case types.KindArray:
		return s.array(schema, depth)
	case types.KindString:
		return s.str(schema), nil
	case types.KindInteger:
		lo, hi := bounds(schema, 1, 1000)
		min, max := int(math.Ceil(lo)), int(math.Floor(hi))
		if max < min {
			return int64(min), nil
		}
		return int64(s.faker.IntRange(min, max)), nil
	case types.KindNumber:
		lo, hi := bounds(schema, 0, 1000)
		return s.faker.Float64Range(lo, hi), nil
	case types.KindBoolean:
		return s.faker.Bool(), nil
	case types.KindNull:
		return nil, nil
	case types.KindAny:
		return s.faker.Word(), nil
	}

	return nil, fmt.Errorf("%w: type %q", ErrUnsupportedSchema, schema.Type)
}

func (s *FakeSynthesizer) object(schema *types.Schema, depth int) (interface{}, error) {
	obj := make(map[string]interface{}, len(schema.Properties))
	for _, name := range schema.PropertyNames() {
		v, err := s.generate(schema.Properties[name], depth+1)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		obj[name] = v
	}
	return obj, nil
}

func (s *FakeSynthesizer) array(schema *types.Schema, depth int) (interface{}, error) {
	n := int(schema.MinItems)
	if n < 1 {
		n = 1
	}
	if schema.MaxItems != nil && uint64(n) > *schema.MaxItems {
		n = int(*schema.MaxItems)
	}

	items := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		v, err := s.generate(schema.Items, depth+1)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, v)
	}
	return items, nil
}

func (s *FakeSynthesizer) str(schema *types.Schema) string {
	var v string
	switch schema.Format {
	case "date":
		v = s.faker.Date().UTC().Format("2006-01-02")
	case "date-time":
		v = s.faker.Date().UTC().Format(time.RFC3339)
	case "email":
		v = s.faker.Email()
	case "uuid":
		v = s.faker.UUID()
	case "uri", "url":
		v = s.faker.URL()
	case "ipv4":
		v = s.faker.IPv4Address()
	case "hostname":
		v = s.faker.DomainName()
	default:
		v = s.faker.Word()
	}

	if uint64(len(v)) < schema.MinLength {
		v += s.faker.LetterN(uint(schema.MinLength - uint64(len(v))))
	}
	if schema.MaxLength != nil && uint64(len(v)) > *schema.MaxLength {
		v = v[:*schema.MaxLength]
	}
	return v
}

func bounds(schema *types.Schema, lo, hi float64) (float64, float64) {
	if schema.Minimum != nil {
		lo = *schema.Minimum
		if schema.Maximum == nil && hi < lo {
			hi = lo + 1000
		}
	}
	if schema.Maximum != nil {
		hi = *schema.Maximum
		if schema.Minimum == nil && lo > hi {
			lo = hi - 1000
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
