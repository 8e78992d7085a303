package types

import "sort"

// SchemaKind identifies the variant of a Schema node
type SchemaKind string

// Schema kinds
const (
	KindObject  SchemaKind = "object"
	KindArray   SchemaKind = "array"
	KindString  SchemaKind = "string"
	KindInteger SchemaKind = "integer"
	KindNumber  SchemaKind = "number"
	KindBoolean SchemaKind = "boolean"
	KindNull    SchemaKind = "null"
	KindAny     SchemaKind = "any"
	KindUnion   SchemaKind = "union"
)

// Schema is a JSON-schema-like node. Exactly one variant is meaningful,
// selected by Kind().
type Schema struct {
	Type       SchemaKind         `json:"type,omitempty" yaml:"type,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	AnyOf      []*Schema          `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`

	Format    string        `json:"format,omitempty" yaml:"format,omitempty"`
	Enum      []interface{} `json:"enum,omitempty" yaml:"enum,omitempty"`
	Pattern   string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Minimum   *float64      `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum   *float64      `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinLength uint64        `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *uint64       `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	MinItems  uint64        `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	MaxItems  *uint64       `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`
	Example   interface{}   `json:"example,omitempty" yaml:"example,omitempty"`
	Default   interface{}   `json:"default,omitempty" yaml:"default,omitempty"`
}

// Kind returns the variant of the node. Alternatives win over a declared
// type; an object without a type but with properties is still an object.
func (s *Schema) Kind() SchemaKind {
	if s == nil {
		return KindAny
	}
	if len(s.AnyOf) > 0 {
		return KindUnion
	}
	switch {
	case s.Type != "":
		return s.Type
	case s.Properties != nil:
		return KindObject
	case s.Items != nil:
		return KindArray
	}
	return KindAny
}

// Resolve returns the first alternative of a union and the node itself otherwise.
// Only the first alternative is considered; other branches are never mutated.
func (s *Schema) Resolve() *Schema {
	for s != nil && s.Kind() == KindUnion {
		s = s.AnyOf[0]
	}
	return s
}

// PropertyNames returns declared property names in sorted order
func (s *Schema) PropertyNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRequired reports whether the object schema lists name as required
func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}
