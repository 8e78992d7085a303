package mutation

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/su1ph3r/fencer/internal/payloads"
	"github.com/su1ph3r/fencer/internal/synth"
	"github.com/su1ph3r/fencer/pkg/types"
)

var errSynth = errors.New("synth failure")

// stubSynth returns fixed values per kind; failOn makes one kind fail.
type stubSynth struct {
	failOn types.SchemaKind
}

func (s stubSynth) Generate(schema *types.Schema) (interface{}, error) {
	schema = schema.Resolve()
	if s.failOn != "" && schema.Kind() == s.failOn {
		return nil, errSynth
	}
	switch schema.Kind() {
	case types.KindInteger:
		return int64(7), nil
	case types.KindBoolean:
		return true, nil
	case types.KindObject:
		obj := map[string]interface{}{}
		for _, name := range schema.PropertyNames() {
			v, err := s.Generate(schema.Properties[name])
			if err != nil {
				return nil, err
			}
			obj[name] = v
		}
		return obj, nil
	case types.KindArray:
		v, err := s.Generate(schema.Items)
		if err != nil {
			return nil, err
		}
		return []interface{}{v, v}, nil
	}
	return "safe", nil
}

func testCatalog(t *testing.T) *payloads.Catalog {
	t.Helper()
	c, err := payloads.NewCatalog([]string{"' OR 1=1", "1;DROP TABLE x"})
	require.NoError(t, err)
	return c
}

func strParam(name, in string, required bool) types.Parameter {
	return types.Parameter{Name: name, In: in, Required: required, Schema: &types.Schema{Type: types.KindString}}
}

func collect(t *testing.T, seq func(func(string, error) bool)) ([]string, []error) {
	t.Helper()
	var urls []string
	var errs []error
	for u, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		urls = append(urls, u)
	}
	return urls, errs
}

func TestMutatedQueryParamURLs_Required(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodGet,
		BaseURL: "http://api.test",
		Path:    "/search",
		Parameters: []types.Parameter{
			strParam("q", types.InQuery, true),
			{Name: "limit", In: types.InQuery, Required: true, Schema: &types.Schema{Type: types.KindInteger}},
		},
	}
	e := NewEngine(ep, stubSynth{}, testCatalog(t), nil)

	urls, errs := collect(t, e.MutatedQueryParamURLs())
	require.Empty(t, errs)
	assert.Equal(t, []string{
		"http://api.test/search?q=' OR 1=1&limit=7",
		"http://api.test/search?q=1;DROP TABLE x&limit=7",
		"http://api.test/search?limit=' OR 1=1&q=safe",
		"http://api.test/search?limit=1;DROP TABLE x&q=safe",
	}, urls)
}

func TestMutatedQueryParamURLs_RequiredBeforeOptional(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodGet,
		BaseURL: "http://api.test",
		Path:    "/items/{id}",
		Parameters: []types.Parameter{
			strParam("id", types.InPath, true),
			strParam("a", types.InQuery, true),
			strParam("b", types.InQuery, true),
			strParam("sort", types.InQuery, false),
			strParam("page", types.InQuery, false),
		},
	}
	catalog := testCatalog(t)
	e := NewEngine(ep, stubSynth{}, catalog, nil)

	urls, errs := collect(t, e.MutatedQueryParamURLs())
	require.Empty(t, errs)

	n, k := 2, catalog.Len()
	require.Len(t, urls, n*k+2*k)

	for _, u := range urls[:n*k] {
		assert.NotContains(t, u, "sort=")
		assert.NotContains(t, u, "page=")
	}
	assert.Equal(t, "http://api.test/items/safe?a=safe&b=safe&sort=' OR 1=1&page=safe", urls[n*k])
	assert.Equal(t, "http://api.test/items/safe?a=safe&b=safe&page=1;DROP TABLE x&sort=safe", urls[len(urls)-1])

	for _, u := range urls {
		assert.NotContains(t, u, "{")
		assert.Equal(t, 1, strings.Count(u, "?"), "url %q", u)
	}
}

func TestMutatedQueryParamURLs_OptionalOnly(t *testing.T) {
	ep := &types.Endpoint{
		Method:     types.MethodGet,
		BaseURL:    "http://api.test",
		Path:       "/list",
		Parameters: []types.Parameter{strParam("filter", types.InQuery, false)},
	}
	e := NewEngine(ep, stubSynth{}, testCatalog(t), nil)

	urls, errs := collect(t, e.MutatedQueryParamURLs())
	require.Empty(t, errs)
	assert.Equal(t, []string{
		"http://api.test/list?filter=' OR 1=1",
		"http://api.test/list?filter=1;DROP TABLE x",
	}, urls)
}

func TestMutatedURLs_NoParams(t *testing.T) {
	ep := &types.Endpoint{Method: types.MethodGet, BaseURL: "http://api.test", Path: "/health"}
	e := NewEngine(ep, stubSynth{}, testCatalog(t), nil)

	urls, errs := collect(t, e.MutatedQueryParamURLs())
	assert.Empty(t, urls)
	assert.Empty(t, errs)

	urls, errs = collect(t, e.MutatedPathParamURLs())
	assert.Empty(t, urls)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrNoPathParams)
}

func TestMutatedPathParamURLs_WithRequiredQuery(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodGet,
		BaseURL: "http://api.test",
		Path:    "/items/{id}",
		Parameters: []types.Parameter{
			strParam("id", types.InPath, true),
			strParam("q", types.InQuery, true),
		},
	}
	e := NewEngine(ep, stubSynth{}, testCatalog(t), nil)

	urls, errs := collect(t, e.MutatedPathParamURLs())
	require.Empty(t, errs)
	assert.Equal(t, []string{
		"http://api.test/items/' OR 1=1",
		"http://api.test/items/1;DROP TABLE x",
		"http://api.test/items/' OR 1=1?q=safe",
		"http://api.test/items/1;DROP TABLE x?q=safe",
	}, urls)
}

func TestMutatedPathParamURLs_EveryPlaceholderResolved(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodDelete,
		BaseURL: "http://api.test",
		Path:    "/users/{userId}/orders/{orderId}",
		Parameters: []types.Parameter{
			{Name: "userId", In: types.InPath, Required: true, Schema: &types.Schema{Type: types.KindInteger}},
			// orderId is undeclared and falls back to a string
		},
	}
	catalog := testCatalog(t)
	e := NewEngine(ep, stubSynth{}, catalog, nil)

	urls, errs := collect(t, e.MutatedPathParamURLs())
	require.Empty(t, errs)
	require.Len(t, urls, 2*catalog.Len())

	assert.Equal(t, "http://api.test/users/' OR 1=1/orders/safe", urls[0])
	assert.Equal(t, "http://api.test/users/7/orders/1;DROP TABLE x", urls[3])
	for _, u := range urls {
		assert.NotContains(t, u, "{")
		assert.NotContains(t, u, "}")
	}
}

func TestMutatedQueryParamURLs_SynthErrorDoesNotAbort(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodGet,
		BaseURL: "http://api.test",
		Path:    "/search",
		Parameters: []types.Parameter{
			strParam("q", types.InQuery, true),
			{Name: "flag", In: types.InQuery, Required: true, Schema: &types.Schema{Type: types.KindBoolean}},
		},
	}
	e := NewEngine(ep, stubSynth{failOn: types.KindBoolean}, testCatalog(t), nil)

	urls, errs := collect(t, e.MutatedQueryParamURLs())
	// q=<strategy> needs a safe flag and fails; flag=<strategy> needs a safe q and succeeds
	assert.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, errSynth)
	}
	assert.Equal(t, []string{
		"http://api.test/search?flag=' OR 1=1&q=safe",
		"http://api.test/search?flag=1;DROP TABLE x&q=safe",
	}, urls)
}

func TestMutatedURLs_StopEarly(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodGet,
		BaseURL: "http://api.test",
		Path:    "/items/{id}",
		Parameters: []types.Parameter{
			strParam("id", types.InPath, true),
			strParam("q", types.InQuery, true),
		},
	}
	e := NewEngine(ep, stubSynth{}, testCatalog(t), nil)

	count := 0
	for range e.MutatedPathParamURLs() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestSafeURL(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodPost,
		BaseURL: "http://api.test",
		Path:    "/items/{id}",
		Parameters: []types.Parameter{
			strParam("id", types.InPath, true),
			strParam("q", types.InQuery, true),
			strParam("opt", types.InQuery, false),
		},
	}
	e := NewEngine(ep, stubSynth{}, testCatalog(t), nil)

	u, err := e.SafeURL()
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/items/safe?q=safe", u)
}

func TestMutationEngines_Idempotent(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodPut,
		BaseURL: "http://api.test",
		Path:    "/items/{id}",
		Parameters: []types.Parameter{
			{Name: "id", In: types.InPath, Required: true, Schema: &types.Schema{Type: types.KindInteger}},
			strParam("q", types.InQuery, true),
			strParam("o", types.InQuery, false),
		},
		Body: &types.RequestBody{
			ContentType: types.ContentTypeJSON,
			Schema: &types.Schema{Type: types.KindObject, Properties: map[string]*types.Schema{
				"name": {Type: types.KindString},
				"note": {Type: types.KindString},
				"qty":  {Type: types.KindInteger},
			}},
		},
	}

	run := func() ([]string, []string, interface{}) {
		e := NewEngine(ep, synth.NewFake(99), payloads.DefaultSQLi(), rand.New(rand.NewPCG(99, 1)))
		q, _ := collect(t, e.MutatedQueryParamURLs())
		p, _ := collect(t, e.MutatedPathParamURLs())
		body, err := e.GenerateUnsafeRequestBody()
		require.NoError(t, err)
		return q, p, body
	}

	q1, p1, b1 := run()
	q2, p2, b2 := run()
	assert.Equal(t, q1, q2)
	assert.Equal(t, p1, p2)
	assert.Equal(t, b1, b2)
}

func TestMutateBody_Scenario(t *testing.T) {
	schema := &types.Schema{
		Type: types.KindObject,
		Properties: map[string]*types.Schema{
			"name": {Type: types.KindString},
			"age":  {Type: types.KindInteger},
		},
	}
	payload := map[string]interface{}{"name": "Alice", "age": 30}
	catalog := testCatalog(t)
	e := NewEngine(&types.Endpoint{}, stubSynth{}, catalog, rand.New(rand.NewPCG(1, 2)))

	out := e.MutateBody(schema, payload).(map[string]interface{})
	assert.Contains(t, catalog.All(), out["name"])
	assert.Equal(t, 30, out["age"])

	// the input is left untouched
	assert.Equal(t, "Alice", payload["name"])
}

func TestMutateBody_Nested(t *testing.T) {
	schema := &types.Schema{
		Type: types.KindArray,
		Items: &types.Schema{
			Type: types.KindObject,
			Properties: map[string]*types.Schema{
				"title":   {Type: types.KindString},
				"missing": {Type: types.KindString},
				"authors": {
					Type: types.KindArray,
					Items: &types.Schema{Type: types.KindObject, Properties: map[string]*types.Schema{
						"name": {Type: types.KindString},
					}},
				},
				"meta": {Type: types.KindObject, Properties: map[string]*types.Schema{
					"label": {Type: types.KindString},
				}},
			},
		},
	}
	payload := []interface{}{
		map[string]interface{}{
			"title":     "Go",
			"extra":     "kept",
			"authors":   []interface{}{map[string]interface{}{"name": "Rob"}},
			"meta":      map[string]interface{}{"label": "x"},
			"unrelated": 12,
		},
	}
	catalog := testCatalog(t)
	e := NewEngine(&types.Endpoint{}, stubSynth{}, catalog, rand.New(rand.NewPCG(3, 4)))

	out := e.MutateBody(schema, payload).([]interface{})
	require.Len(t, out, 1)
	obj := out[0].(map[string]interface{})

	assert.Contains(t, catalog.All(), obj["title"])
	assert.NotContains(t, obj, "missing", "absent properties are skipped")
	assert.Equal(t, "kept", obj["extra"])
	assert.Equal(t, 12, obj["unrelated"])

	author := obj["authors"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, catalog.All(), author["name"])

	// nested objects outside arrays are not walked
	assert.Equal(t, "x", obj["meta"].(map[string]interface{})["label"])
}

func TestMutateBody_NoOps(t *testing.T) {
	e := NewEngine(&types.Endpoint{}, stubSynth{}, testCatalog(t), nil)

	empty := &types.Schema{Type: types.KindObject}
	payload := map[string]interface{}{"a": "b"}
	assert.Equal(t, payload, e.MutateBody(empty, payload))

	assert.Equal(t, "plain", e.MutateBody(&types.Schema{Type: types.KindString}, "plain"))
	assert.Equal(t, 5, e.MutateBody(&types.Schema{Type: types.KindInteger}, 5))

	// shape mismatch is tolerated
	assert.Equal(t, "str", e.MutateBody(&types.Schema{Type: types.KindObject}, "str"))
	assert.Equal(t, 1, e.MutateBody(&types.Schema{Type: types.KindArray, Items: &types.Schema{}}, 1))
}

func TestMutateBody_UnionRoot(t *testing.T) {
	schema := &types.Schema{AnyOf: []*types.Schema{
		{Type: types.KindObject, Properties: map[string]*types.Schema{"name": {Type: types.KindString}}},
		{Type: types.KindObject, Properties: map[string]*types.Schema{"other": {Type: types.KindString}}},
	}}
	catalog := testCatalog(t)
	e := NewEngine(&types.Endpoint{}, stubSynth{}, catalog, nil)

	out := e.MutateBody(schema, map[string]interface{}{"name": "a", "other": "b"}).(map[string]interface{})
	assert.Contains(t, catalog.All(), out["name"])
	assert.Equal(t, "b", out["other"], "only the first alternative is mutated")
}

func TestGenerateUnsafeRequestBody(t *testing.T) {
	ep := &types.Endpoint{
		Method:  types.MethodPost,
		BaseURL: "http://api.test",
		Path:    "/users",
		Body: &types.RequestBody{
			ContentType: types.ContentTypeJSON,
			Schema: &types.Schema{Type: types.KindObject, Properties: map[string]*types.Schema{
				"name": {Type: types.KindString},
				"age":  {Type: types.KindInteger},
			}},
		},
	}
	catalog := testCatalog(t)
	e := NewEngine(ep, stubSynth{}, catalog, nil)

	body, err := e.GenerateUnsafeRequestBody()
	require.NoError(t, err)
	obj := body.(map[string]interface{})
	assert.Contains(t, catalog.All(), obj["name"])
	assert.Equal(t, int64(7), obj["age"])

	safe, err := e.GenerateSafeRequestBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "safe", "age": int64(7)}, safe)
}

func TestGenerateUnsafeRequestBody_NoJSONBody(t *testing.T) {
	e := NewEngine(&types.Endpoint{Method: types.MethodGet, Path: "/x"}, stubSynth{}, testCatalog(t), nil)
	_, err := e.GenerateUnsafeRequestBody()
	assert.ErrorIs(t, err, types.ErrNoJSONBody)

	form := &types.Endpoint{
		Method: types.MethodPost,
		Path:   "/form",
		Body:   &types.RequestBody{ContentType: "multipart/form-data", Schema: &types.Schema{Type: types.KindObject}},
	}
	e = NewEngine(form, stubSynth{}, testCatalog(t), nil)
	_, err = e.GenerateUnsafeRequestBody()
	assert.ErrorIs(t, err, types.ErrNoJSONBody)
}

func TestGenerateUnsafeRequestBody_SynthError(t *testing.T) {
	ep := &types.Endpoint{
		Method: types.MethodPost,
		Path:   "/x",
		Body: &types.RequestBody{
			ContentType: types.ContentTypeJSON,
			Schema:      &types.Schema{Type: types.KindObject, Properties: map[string]*types.Schema{"b": {Type: types.KindBoolean}}},
		},
	}
	e := NewEngine(ep, stubSynth{failOn: types.KindBoolean}, testCatalog(t), nil)
	_, err := e.GenerateUnsafeRequestBody()
	assert.ErrorIs(t, err, errSynth)
}
