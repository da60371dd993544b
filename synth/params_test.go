package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/autodoc/openapi"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   string
	}{
		{"required integer", []string{"required", "integer"}, "integer"},
		{"nullable numeric", []string{"nullable", "numeric"}, "double"},
		{"empty", nil, "string"},
		{"unknown tokens", []string{"required", "max:255"}, "string"},
		{"array", []string{"array"}, "object"},
		{"boolean", []string{"sometimes", "boolean"}, "boolean"},
		{"date", []string{"date"}, "date"},
		{"digits with argument", []string{"digits:4"}, "integer"},
		{"email", []string{"email"}, "string"},
		{"first typed token wins", []string{"date", "integer"}, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.tokens))
		})
	}
}

func TestSplitRules(t *testing.T) {
	assert.Equal(t, []string{"required", "string", "max:255"}, SplitRules("required|string|max:255"))
	assert.Equal(t, []string{"required"}, SplitRules(" required || "))
	assert.Nil(t, SplitRules(""))
}

func TestQueryParameters(t *testing.T) {
	rules := map[string]string{
		"q":    "required|string",
		"page": "integer|min:1",
	}

	t.Run("builds parameters", func(t *testing.T) {
		op := openapi.NewOperation(nil)
		params := queryParameters(op, rules, Bag{"q": "Search phrase"})

		assert.Equal(t, []*openapi.Parameter{
			{In: "query", Name: "page", Description: "integer, min:1", Type: "integer"},
			{In: "query", Name: "q", Description: "Search phrase", Required: true, Type: "string"},
		}, params)
	})

	t.Run("skips known names", func(t *testing.T) {
		op := openapi.NewOperation(nil)
		op.Parameters = append(op.Parameters, &openapi.Parameter{In: "query", Name: "page", Description: "first"})

		params := queryParameters(op, rules, nil)
		require.Len(t, params, 1)
		assert.Equal(t, "q", params[0].Name)
	})

	t.Run("no rules", func(t *testing.T) {
		assert.Empty(t, queryParameters(openapi.NewOperation(nil), nil, nil))
	})
}

func TestSharedSchema(t *testing.T) {
	schema := sharedSchema(map[string]string{
		"name":  "required|string",
		"age":   "nullable|integer",
		"email": "required|email",
	}, Bag{"email": "Contact address"})

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"email", "name"}, schema.Required)
	assert.Equal(t, &openapi.Schema{Type: "integer", Description: "nullable, integer"}, schema.Properties["age"])
	assert.Equal(t, &openapi.Schema{Type: "string", Description: "Contact address"}, schema.Properties["email"])
	assert.Equal(t, &openapi.Schema{Type: "string", Description: "required, string"}, schema.Properties["name"])
}

func TestBodyParameter(t *testing.T) {
	p := bodyParameter("UsersObject")

	assert.Equal(t, "body", p.In)
	assert.Equal(t, "body", p.Name)
	assert.True(t, p.Required)
	assert.Equal(t, "#/components/parameters/UsersObject", p.Schema.Ref)
}

func TestHeaderParameters(t *testing.T) {
	params := headerParameters(map[string]string{
		"X-Tenant":        "acme",
		"Accept-Language": "en",
	})

	require.Len(t, params, 2)
	assert.Equal(t, "Accept-Language", params[0].Name)
	assert.Equal(t, "X-Tenant", params[1].Name)
	for _, p := range params {
		assert.Equal(t, "header", p.In)
		assert.True(t, p.Required)
	}
	assert.Equal(t, "acme", params[1].Schema.Default)

	assert.Empty(t, headerParameters(nil))
}
