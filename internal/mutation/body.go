package mutation

import (
	"github.com/mohae/deepcopy"

	"github.com/su1ph3r/fencer/pkg/types"
)

// MutateBody returns a copy of payload in which every string-typed value
// declared by schema is replaced by a random catalog strategy. Arrays are
// walked element by element. Declared properties missing from the payload
// and payload keys missing from the schema are left alone. A union resolves
// to its first alternative.
func (e *Engine) MutateBody(schema *types.Schema, payload interface{}) interface{} {
	return e.inject(schema, deepcopy.Copy(payload))
}

func (e *Engine) inject(schema *types.Schema, payload interface{}) interface{} {
	schema = schema.Resolve()

	switch schema.Kind() {
	case types.KindArray:
		items, ok := payload.([]interface{})
		if !ok {
			return payload
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = e.inject(schema.Items, item)
		}
		return out

	case types.KindObject:
		obj, ok := payload.(map[string]interface{})
		if !ok {
			return payload
		}
		for _, name := range schema.PropertyNames() {
			value, present := obj[name]
			if !present {
				continue
			}
			prop := schema.Properties[name].Resolve()
			switch prop.Kind() {
			case types.KindString:
				obj[name] = e.catalog.RandomOne(e.rng)
			case types.KindArray:
				obj[name] = e.inject(prop, value)
			}
		}
		return obj
	}

	return payload
}

// GenerateUnsafeRequestBody synthesizes a valid sample for the endpoint's
// JSON body schema and injects strategies into its string leaves.
func (e *Engine) GenerateUnsafeRequestBody() (interface{}, error) {
	schema, err := e.endpoint.JSONBodySchema()
	if err != nil {
		return nil, err
	}
	root := schema.Resolve()

	sample, err := e.synth.Generate(root)
	if err != nil {
		return nil, err
	}
	return e.MutateBody(root, sample), nil
}

// GenerateSafeRequestBody synthesizes a valid sample for the endpoint's JSON body schema
func (e *Engine) GenerateSafeRequestBody() (interface{}, error) {
	schema, err := e.endpoint.JSONBodySchema()
	if err != nil {
		return nil, err
	}
	return e.synth.Generate(schema)
}
