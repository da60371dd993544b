package synth

import (
	"slices"

	"github.com/vitalvas/autodoc/openapi"
)

// Allowed security identifiers.
const (
	BearerAuth = "bearerAuth"
	BasicAuth  = "basicAuth"
	APIKeyAuth = "ApiKeyAuth"
)

// AllowedSecurity returns the accepted security identifiers in their
// canonical order.
func AllowedSecurity() []string {
	return []string{BearerAuth, BasicAuth, APIKeyAuth}
}

// ValidateSecurity checks a security identifier. The empty identifier is
// valid and means no security applies.
func ValidateSecurity(id string) error {
	if id == "" || slices.Contains(AllowedSecurity(), id) {
		return nil
	}
	return &SecurityError{Identifier: id}
}

// ResolveSecurity returns the fixed security scheme template for id.
// It returns nil for the empty identifier.
func ResolveSecurity(id string) (*openapi.SecurityScheme, error) {
	if err := ValidateSecurity(id); err != nil {
		return nil, err
	}

	switch id {
	case BearerAuth:
		return &openapi.SecurityScheme{
			Description:  "The authorization token, usually represented as: Bearer ...",
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		}, nil
	case BasicAuth:
		return &openapi.SecurityScheme{
			Description: "Base64-encoded string username:password",
			Type:        "http",
			Scheme:      "basic",
		}, nil
	case APIKeyAuth:
		return &openapi.SecurityScheme{
			Description: "Header X-API-KEY with your value",
			Type:        "apiKey",
			In:          "header",
			Name:        "X-API-KEY",
		}, nil
	default:
		return nil, nil
	}
}

// operationSecurity decides which security identifier applies to an
// operation. An annotation value of false disables security, a string
// overrides the global default, anything else falls back to it.
func operationSecurity(bag Bag, global string) (string, error) {
	switch v := bag["security"].(type) {
	case bool:
		if !v {
			return "", nil
		}
	case string:
		if err := ValidateSecurity(v); err != nil {
			return "", err
		}
		return v, nil
	}
	return global, nil
}

// addSecurity registers id on op once and lazily inserts the matching
// scheme into the document components.
func addSecurity(doc *openapi.Document, op *openapi.Operation, id string) error {
	if id == "" {
		return nil
	}

	scheme, err := ResolveSecurity(id)
	if err != nil {
		return err
	}

	if doc.Components.SecuritySchemes == nil {
		doc.Components.SecuritySchemes = make(map[string]*openapi.SecurityScheme)
	}
	if _, ok := doc.Components.SecuritySchemes[id]; !ok {
		doc.Components.SecuritySchemes[id] = scheme
	}

	for _, req := range op.Security {
		if _, ok := req[id]; ok {
			return nil
		}
	}
	op.Security = append(op.Security, openapi.SecurityRequirement{id: []string{}})
	return nil
}
