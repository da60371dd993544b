package openapi

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnavailablePreview is stored in place of a Response Object when the
// observed body cannot be embedded in the document (binary content).
const UnavailablePreview = "*Unavailable for preview*"

// Document represents the root of a synthesized OpenAPI document.
//
// See: https://spec.openapis.org/oas/v3.0.3#openapi-object
type Document struct {
	OpenAPI    string              `json:"openapi" yaml:"openapi"`
	Servers    []Server            `json:"servers,omitempty" yaml:"servers,omitempty"`
	Info       *Info               `json:"info,omitempty" yaml:"info,omitempty"`
	Components Components          `json:"components" yaml:"components"`
	Paths      map[string]PathItem `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// NewDocument returns an empty document for the given OpenAPI version.
func NewDocument(version string) *Document {
	return &Document{
		OpenAPI: version,
		Paths:   make(map[string]PathItem),
	}
}

// Operation returns the operation registered for the path template and
// lower-case HTTP method, or nil.
func (d *Document) Operation(path, method string) *Operation {
	item, ok := d.Paths[path]
	if !ok {
		return nil
	}
	return item[method]
}

// Clone returns a deep copy of the document. The copy shares no maps or
// slices with d, so it can be handed out as a read-only snapshot.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("openapi: clone document: %w", err)
	}

	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("openapi: clone document: %w", err)
	}
	if out.Paths == nil {
		out.Paths = make(map[string]PathItem)
	}
	return &out, nil
}

// Info provides metadata about the API.
//
// See: https://spec.openapis.org/oas/v3.0.3#info-object
type Info struct {
	Title          string   `json:"title" yaml:"title"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	TermsOfService string   `json:"termsOfService,omitempty" yaml:"termsOfService,omitempty"`
	Contact        *Contact `json:"contact,omitempty" yaml:"contact,omitempty"`
	License        *License `json:"license,omitempty" yaml:"license,omitempty"`
	Version        string   `json:"version" yaml:"version"`
}

// Contact represents contact information for the API.
type Contact struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// License represents license information for the API.
type License struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Server represents a server.
//
// See: https://spec.openapis.org/oas/v3.0.3#server-object
type Server struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// PathItem maps a lower-case HTTP method to the operation observed for it.
type PathItem map[string]*Operation

// Operation describes a single API operation on a path. A freshly observed
// operation has every collection initialized so that it serializes as empty
// lists rather than null.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object
type Operation struct {
	Tags         []string              `json:"tags" yaml:"tags"`
	Summary      string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description  string                `json:"description" yaml:"description"`
	ContentTypes []string              `json:"x-content-types,omitempty" yaml:"x-content-types,omitempty"`
	Parameters   []*Parameter          `json:"parameters" yaml:"parameters"`
	RequestBody  *RequestBody          `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses    map[string]*Response  `json:"responses" yaml:"responses"`
	Security     []SecurityRequirement `json:"security" yaml:"security"`
}

// NewOperation returns an operation with the fixed default fields and the
// given path parameters.
func NewOperation(pathParams []*Parameter) *Operation {
	if pathParams == nil {
		pathParams = []*Parameter{}
	}
	return &Operation{
		Tags:       []string{},
		Parameters: pathParams,
		Responses:  make(map[string]*Response),
		Security:   []SecurityRequirement{},
	}
}

// Parameter describes a single operation parameter. Parameters are unique
// by name and location within an operation. Location is one of "query",
// "path", "header" or "body".
//
// See: https://spec.openapis.org/oas/v3.0.3#parameter-object
type Parameter struct {
	In          string  `json:"in" yaml:"in"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Required    bool    `json:"required,omitempty" yaml:"required,omitempty"`
	Type        string  `json:"type,omitempty" yaml:"type,omitempty"`
	Schema      *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// RequestBody describes the content types a request body was observed with.
//
// See: https://spec.openapis.org/oas/v3.0.3#request-body-object
type RequestBody struct {
	Content map[string]*MediaType `json:"content" yaml:"content"`
}

// MediaType describes a media type with a schema.
//
// See: https://spec.openapis.org/oas/v3.0.3#media-type-object
type MediaType struct {
	Schema *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Schema is the subset of the Schema Object the synthesizer emits: typed
// properties, a required list, an example, and references to shared schemas.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object
type Schema struct {
	Ref         string             `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Type        string             `json:"type,omitempty" yaml:"type,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any                `json:"default,omitempty" yaml:"default,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Example     any                `json:"example,omitempty" yaml:"example,omitempty"`
}

// Response describes a single observed response. A Response with
// Unavailable set serializes as the UnavailablePreview string instead of
// a Response Object.
//
// See: https://spec.openapis.org/oas/v3.0.3#response-object
type Response struct {
	Description string
	Content     map[string]*MediaType
	Unavailable bool
}

// responseObject is the wire shape of an available Response.
type responseObject struct {
	Description string                `json:"description" yaml:"description"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// MarshalJSON encodes the response as an object, or as the preview
// sentinel string when the body was not embeddable.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Unavailable {
		return json.Marshal(UnavailablePreview)
	}
	return json.Marshal(responseObject{Description: r.Description, Content: r.Content})
}

// UnmarshalJSON decodes the response from either a JSON object or the
// preview sentinel string.
func (r *Response) UnmarshalJSON(data []byte) error {
	var sentinel string
	if err := json.Unmarshal(data, &sentinel); err == nil {
		*r = Response{Unavailable: true}
		return nil
	}

	var obj responseObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = Response{Description: obj.Description, Content: obj.Content}
	return nil
}

// MarshalYAML encodes the response as a YAML mapping or the sentinel scalar.
func (r Response) MarshalYAML() (any, error) {
	if r.Unavailable {
		return UnavailablePreview, nil
	}
	return responseObject{Description: r.Description, Content: r.Content}, nil
}

// UnmarshalYAML decodes the response from either a YAML mapping or scalar.
func (r *Response) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*r = Response{Unavailable: true}
		return nil
	case yaml.MappingNode:
		var obj responseObject
		if err := node.Decode(&obj); err != nil {
			return err
		}
		*r = Response{Description: obj.Description, Content: obj.Content}
		return nil
	default:
		return fmt.Errorf("unsupported YAML node kind %d for Response", node.Kind)
	}
}

// Components holds the shared objects threaded through the document:
// default responses, security schemes and the shared request schemas
// referenced by body parameters.
//
// See: https://spec.openapis.org/oas/v3.0.3#components-object
type Components struct {
	Responses       map[string]*Response       `json:"responses,omitempty" yaml:"responses,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
	Parameters      map[string]*Schema         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// SecurityRequirement lists required security schemes for an operation.
// Each key maps to a list of scope names, empty for the schemes the
// synthesizer emits.
//
// See: https://spec.openapis.org/oas/v3.0.3#security-requirement-object
type SecurityRequirement map[string][]string

// SecurityScheme defines a security scheme used by API operations.
//
// See: https://spec.openapis.org/oas/v3.0.3#security-scheme-object
type SecurityScheme struct {
	Type         string `json:"type" yaml:"type"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	In           string `json:"in,omitempty" yaml:"in,omitempty"`
	Scheme       string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
}
