package parser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/su1ph3r/fencer/pkg/types"
)

// OpenAPIParser parses OpenAPI 3 and Swagger 2 documents
type OpenAPIParser struct {
	filePath string
	baseURL  string
}

// NewOpenAPIParser creates a new OpenAPI parser
func NewOpenAPIParser(filePath, baseURL string) (*OpenAPIParser, error) {
	return &OpenAPIParser{
		filePath: filePath,
		baseURL:  baseURL,
	}, nil
}

// Parse loads the document and returns its operations in path then method order
func (p *OpenAPIParser) Parse() ([]types.Endpoint, error) {
	doc, err := p.load()
	if err != nil {
		return nil, err
	}

	baseURL := p.baseURL
	if baseURL == "" {
		baseURL = serverURL(doc)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %s declares no server URL; a base URL is required", ErrInvalidInput, p.filePath)
	}

	paths := doc.Paths.Map()
	names := make([]string, 0, len(paths))
	for path := range paths {
		names = append(names, path)
	}
	sort.Strings(names)

	var endpoints []types.Endpoint
	for _, path := range names {
		pathItem := paths[path]
		operations := []struct {
			method types.Method
			op     *openapi3.Operation
		}{
			{types.MethodGet, pathItem.Get},
			{types.MethodPost, pathItem.Post},
			{types.MethodPut, pathItem.Put},
			{types.MethodPatch, pathItem.Patch},
			{types.MethodDelete, pathItem.Delete},
			{types.MethodHead, pathItem.Head},
			{types.MethodOptions, pathItem.Options},
		}

		for _, o := range operations {
			if o.op == nil {
				continue
			}
			endpoints = append(endpoints, p.parseOperation(o.method, path, baseURL, o.op, pathItem.Parameters))
		}
	}

	return endpoints, nil
}

// load reads the document, converting Swagger 2 to OpenAPI 3
func (p *OpenAPIParser) load() (*openapi3.T, error) {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	var probe struct {
		Swagger string `yaml:"swagger"`
		OpenAPI string `yaml:"openapi"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	if strings.HasPrefix(probe.Swagger, "2") {
		return p.loadSwagger2(data)
	}
	if probe.OpenAPI == "" {
		return nil, fmt.Errorf("%w: %s is not an OpenAPI document", ErrParseFailed, p.filePath)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return doc, nil
}

func (p *OpenAPIParser) loadSwagger2(data []byte) (*openapi3.T, error) {
	// openapi2.T decodes from JSON only
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var doc2 openapi2.T
	if err := json.Unmarshal(jsonData, &doc2); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	doc, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if err := openapi3.NewLoader().ResolveRefsIn(doc, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return doc, nil
}

// serverURL returns the first server URL with its variables at their defaults
func serverURL(doc *openapi3.T) string {
	if len(doc.Servers) == 0 || doc.Servers[0] == nil {
		return ""
	}
	server := doc.Servers[0]
	u := server.URL
	for name, v := range server.Variables {
		if v != nil {
			u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
		}
	}
	if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" {
		// relative server URLs cannot be probed without an explicit base
		return ""
	}
	return u
}

// parseOperation converts an OpenAPI operation to an Endpoint
func (p *OpenAPIParser) parseOperation(method types.Method, path, baseURL string, op *openapi3.Operation, pathParams openapi3.Parameters) types.Endpoint {
	endpoint := types.Endpoint{
		Method:      method,
		Path:        NormalizePath(path),
		BaseURL:     baseURL,
		Description: op.Description,
		Tags:        op.Tags,
		OperationID: op.OperationID,
	}

	if op.Summary != "" && endpoint.Description == "" {
		endpoint.Description = op.Summary
	}

	// Path-level parameters first; an operation-level parameter with the
	// same name and location replaces it in place.
	index := make(map[string]int)
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			param := parseParameter(ref.Value)
			key := param.In + ":" + param.Name
			if i, ok := index[key]; ok {
				endpoint.Parameters[i] = param
				continue
			}
			index[key] = len(endpoint.Parameters)
			endpoint.Parameters = append(endpoint.Parameters, param)
		}
	}
	add(pathParams)
	add(op.Parameters)

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		endpoint.Body = parseRequestBody(op.RequestBody.Value)
	}

	return endpoint
}

// parseParameter converts an OpenAPI parameter
func parseParameter(param *openapi3.Parameter) types.Parameter {
	tp := types.Parameter{
		Name:        param.Name,
		In:          param.In,
		Required:    param.Required || param.In == openapi3.ParameterInPath,
		Description: param.Description,
		Schema:      convertSchema(param.Schema, nil),
		Example:     param.Example,
	}

	if tp.Schema == nil {
		tp.Schema = &types.Schema{Type: types.KindString}
	}
	if param.Example != nil && tp.Schema.Example == nil {
		tp.Schema.Example = param.Example
	}

	return tp
}

// parseRequestBody converts an OpenAPI request body, preferring JSON media types
func parseRequestBody(body *openapi3.RequestBody) *types.RequestBody {
	rb := &types.RequestBody{Required: body.Required}

	mediaTypes := make([]string, 0, len(body.Content))
	for ct := range body.Content {
		mediaTypes = append(mediaTypes, ct)
	}
	sort.Strings(mediaTypes)

	chosen := ""
	for _, ct := range mediaTypes {
		if isJSONMediaType(ct) {
			chosen = ct
			break
		}
	}
	if chosen == "" && len(mediaTypes) > 0 {
		chosen = mediaTypes[0]
	}
	if chosen == "" {
		return rb
	}

	rb.ContentType = chosen
	if isJSONMediaType(chosen) {
		rb.ContentType = types.ContentTypeJSON
	}
	if content := body.Content[chosen]; content != nil {
		rb.Schema = convertSchema(content.Schema, nil)
		if rb.Schema != nil && content.Example != nil && rb.Schema.Example == nil {
			rb.Schema.Example = content.Example
		}
	}

	return rb
}

// isJSONMediaType matches application/json, its parameters and +json suffixes
func isJSONMediaType(ct string) bool {
	essence := strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	return essence == types.ContentTypeJSON || strings.HasSuffix(essence, "+json")
}

// convertSchema converts an OpenAPI schema into the prober's schema tree.
// A schema already on the current branch becomes an empty object so
// recursive definitions terminate.
func convertSchema(ref *openapi3.SchemaRef, onPath map[*openapi3.Schema]bool) *types.Schema {
	if ref == nil || ref.Value == nil {
		return nil
	}
	s := ref.Value
	if onPath[s] {
		return &types.Schema{Type: types.KindObject}
	}
	if onPath == nil {
		onPath = make(map[*openapi3.Schema]bool)
	}
	onPath[s] = true
	defer delete(onPath, s)

	out := &types.Schema{
		Type:      schemaType(s),
		Format:    s.Format,
		Pattern:   s.Pattern,
		Minimum:   s.Min,
		Maximum:   s.Max,
		MinLength: s.MinLength,
		MaxLength: s.MaxLength,
		MinItems:  s.MinItems,
		MaxItems:  s.MaxItems,
		Example:   s.Example,
		Default:   s.Default,
		Required:  append([]string(nil), s.Required...),
	}
	if len(s.Enum) > 0 {
		out.Enum = append([]interface{}(nil), s.Enum...)
	}

	for _, alt := range append(append(openapi3.SchemaRefs{}, s.AnyOf...), s.OneOf...) {
		if conv := convertSchema(alt, onPath); conv != nil {
			out.AnyOf = append(out.AnyOf, conv)
		}
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*types.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			if conv := convertSchema(prop, onPath); conv != nil {
				out.Properties[name] = conv
			}
		}
	}

	// allOf members are merged into one object
	for _, part := range s.AllOf {
		conv := convertSchema(part, onPath)
		if conv == nil {
			continue
		}
		if len(conv.Properties) > 0 {
			if out.Properties == nil {
				out.Properties = make(map[string]*types.Schema)
			}
			for name, prop := range conv.Properties {
				out.Properties[name] = prop
			}
			out.Required = append(out.Required, conv.Required...)
			if out.Type == "" {
				out.Type = types.KindObject
			}
		} else if out.Type == "" {
			out.Type = conv.Type
		}
	}

	if s.Items != nil {
		out.Items = convertSchema(s.Items, onPath)
		if out.Items == nil {
			out.Items = &types.Schema{Type: types.KindString}
		}
	}
	if out.Type == types.KindArray && out.Items == nil {
		out.Items = &types.Schema{Type: types.KindString}
	}

	return out
}

// schemaType picks the first non-null declared type
func schemaType(s *openapi3.Schema) types.SchemaKind {
	if s.Type == nil {
		return ""
	}
	declared := s.Type.Slice()
	for _, t := range declared {
		if t != openapi3.TypeNull {
			return types.SchemaKind(t)
		}
	}
	if len(declared) > 0 {
		return types.KindNull
	}
	return ""
}
