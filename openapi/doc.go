// Package openapi holds the document model written by the synthesizer and
// the HTTP endpoints that serve a committed document.
//
// The model covers the subset of OpenAPI 3.0 the synthesizer emits:
// servers, info, per path operations keyed by lower-case method, body
// parameters referencing shared schemas under components.parameters, and
// responses keyed by status code. A response whose body could not be
// embedded serializes as the plain string UnavailablePreview.
//
// See: https://spec.openapis.org/oas/v3.0.3
//
// # Serving
//
// Handle registers the JSON and YAML document endpoints and an interactive
// docs page on a net/http.ServeMux. The document is read from a Source on
// every request:
//
//	mux := http.NewServeMux()
//	openapi.Handle(mux, "/docs", st, &openapi.HandleConfig{UI: openapi.DocsRedoc})
//
// Endpoints:
//
//	/docs/            - interactive HTML docs (Swagger UI, RapiDoc or Redoc)
//	/docs/schema.json - document as JSON
//	/docs/schema.yaml - document as YAML
//
// A document that has not been committed yet is reported as 404.
package openapi
