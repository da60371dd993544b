package synth

import (
	"slices"
	"sort"
	"strings"

	"github.com/vitalvas/autodoc/openapi"
)

// ruleTypes maps validation rule names to the coarse type they imply.
var ruleTypes = map[string]string{
	"array":   "object",
	"boolean": "boolean",
	"date":    "date",
	"digits":  "integer",
	"email":   "string",
	"integer": "integer",
	"numeric": "double",
	"string":  "string",
}

// SplitRules splits a pipe-delimited rule expression into its tokens.
func SplitRules(rule string) []string {
	var tokens []string
	for _, t := range strings.Split(rule, "|") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// ruleName returns the name of a rule token without its arguments:
// "max:255" has the name "max".
func ruleName(token string) string {
	name, _, _ := strings.Cut(token, ":")
	return name
}

// TypeRule returns the type implied by a single rule token.
func TypeRule(token string) (string, bool) {
	t, ok := ruleTypes[ruleName(token)]
	return t, ok
}

// InferType returns the type implied by the first typed token of a rule
// list, or "string" when no token implies a type.
func InferType(tokens []string) string {
	for _, token := range tokens {
		if t, ok := TypeRule(token); ok {
			return t
		}
	}
	return "string"
}

func hasRule(tokens []string, name string) bool {
	return slices.ContainsFunc(tokens, func(t string) bool {
		return ruleName(t) == name
	})
}

// sortedFields returns the field names of rules in a stable order.
func sortedFields(rules map[string]string) []string {
	fields := make([]string, 0, len(rules))
	for f := range rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// queryParameters turns rules into query parameters. Fields already
// present on op are skipped.
func queryParameters(op *openapi.Operation, rules map[string]string, bag Bag) []*openapi.Parameter {
	var params []*openapi.Parameter
	for _, field := range sortedFields(rules) {
		if hasParameter(op, field) {
			continue
		}
		tokens := SplitRules(rules[field])
		params = append(params, &openapi.Parameter{
			In:          "query",
			Name:        field,
			Description: bag.Text(field, strings.Join(tokens, ", ")),
			Required:    hasRule(tokens, "required"),
			Type:        InferType(tokens),
		})
	}
	return params
}

// sharedSchema folds rules into one object schema with a property per
// field and the aggregated required list.
func sharedSchema(rules map[string]string, bag Bag) *openapi.Schema {
	schema := &openapi.Schema{
		Type:       "object",
		Properties: make(map[string]*openapi.Schema, len(rules)),
	}
	for _, field := range sortedFields(rules) {
		tokens := SplitRules(rules[field])
		schema.Properties[field] = &openapi.Schema{
			Type:        InferType(tokens),
			Description: bag.Text(field, strings.Join(tokens, ", ")),
		}
		if hasRule(tokens, "required") {
			schema.Required = append(schema.Required, field)
		}
	}
	return schema
}

// schemaRef returns the component reference for a shared schema name.
func schemaRef(name string) string {
	return "#/components/parameters/" + name
}

// bodyParameter references the shared schema holding the request fields.
func bodyParameter(name string) *openapi.Parameter {
	return &openapi.Parameter{
		In:       "body",
		Name:     "body",
		Required: true,
		Schema:   &openapi.Schema{Ref: schemaRef(name)},
	}
}

// headerParameters turns the configured default headers into required
// header parameters, ordered by name.
func headerParameters(headers map[string]string) []*openapi.Parameter {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]*openapi.Parameter, 0, len(names))
	for _, name := range names {
		params = append(params, &openapi.Parameter{
			In:       "header",
			Name:     name,
			Required: true,
			Schema:   &openapi.Schema{Default: headers[name]},
		})
	}
	return params
}

func hasParameter(op *openapi.Operation, name string) bool {
	return slices.ContainsFunc(op.Parameters, func(p *openapi.Parameter) bool {
		return p.Name == name
	})
}

func hasParameterIn(op *openapi.Operation, in, name string) bool {
	return slices.ContainsFunc(op.Parameters, func(p *openapi.Parameter) bool {
		return p.In == in && p.Name == name
	})
}

func hasBodyParameter(op *openapi.Operation) bool {
	return slices.ContainsFunc(op.Parameters, func(p *openapi.Parameter) bool {
		return p.In == "body"
	})
}
