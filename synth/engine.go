package synth

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/vitalvas/autodoc/openapi"
	"github.com/vitalvas/autodoc/store"
)

// DefaultOpenAPIVersion is written to new documents when Config leaves the
// version empty.
const DefaultOpenAPIVersion = "3.0.0"

const (
	formContentType = "application/x-www-form-urlencoded"
	objectSuffix    = "Object"
)

// Config configures an Engine.
type Config struct {
	// OpenAPIVersion is the "openapi" field of new documents.
	OpenAPIVersion string

	// BasePath prefixes every path template, e.g. "/api".
	BasePath string

	// Servers are written to new documents in order.
	Servers []openapi.Server

	// Info is written to new documents as is.
	Info *openapi.Info

	// CodeDescriptions are the default response descriptions per status
	// code. They also seed components.responses of new documents.
	CodeDescriptions map[int]string

	// Headers are default request headers (name -> default value) added to
	// every operation.
	Headers map[string]string

	// Security is the global default security identifier. Empty disables
	// security unless an annotation enables it.
	Security string

	// Annotations supplies per request type metadata. Optional.
	Annotations AnnotationSource

	// Rules supplies per request type validation rules. Optional.
	Rules RuleSource

	// Logger receives engine logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine accumulates observed exchanges into one OpenAPI document.
//
// The document is staged in the store after every capture so that a fresh
// process can resume it, and written as the production document by Commit.
// Captures are serialized; the store is assumed to have a single writer.
type Engine struct {
	cfg       Config
	store     store.DocumentStore
	routes    routeClassifier
	responses responseRecorder
	runID     string
	logger    *slog.Logger

	mu  sync.Mutex
	doc *openapi.Document
}

// New returns an engine writing to st. It fails with a *SecurityError when
// the global security identifier is not allowed and with ErrNoStore when st
// is nil.
func New(st store.DocumentStore, cfg Config) (*Engine, error) {
	if st == nil {
		return nil, ErrNoStore
	}
	if err := ValidateSecurity(cfg.Security); err != nil {
		return nil, err
	}
	if cfg.OpenAPIVersion == "" {
		cfg.OpenAPIVersion = DefaultOpenAPIVersion
	}

	runID := uuid.Must(uuid.NewV7()).String()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg:       cfg,
		store:     st,
		routes:    newRouteClassifier(cfg.BasePath),
		responses: responseRecorder{descriptions: cfg.CodeDescriptions},
		runID:     runID,
		logger:    logger.With("component", "autodoc", "run_id", runID),
	}, nil
}

// RunID identifies this engine instance in logs.
func (e *Engine) RunID() string {
	return e.runID
}

// BeginOrResume loads the staged document, or initializes and stages an
// empty one when nothing is staged.
func (e *Engine) BeginOrResume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.beginLocked()
}

func (e *Engine) beginLocked() error {
	doc, err := e.store.LoadStaged()
	if err != nil {
		return err
	}
	if doc != nil {
		if doc.Paths == nil {
			doc.Paths = make(map[string]openapi.PathItem)
		}
		e.doc = doc
		e.logger.Info("resumed staged document", "paths", len(doc.Paths))
		return nil
	}

	doc, err = e.newDocument()
	if err != nil {
		return err
	}
	if err := e.store.SaveStaged(doc); err != nil {
		return err
	}
	e.doc = doc
	e.logger.Info("initialized document", "openapi", doc.OpenAPI)
	return nil
}

// newDocument builds the empty document of a run: servers, info, default
// responses and the global security scheme.
func (e *Engine) newDocument() (*openapi.Document, error) {
	doc := openapi.NewDocument(e.cfg.OpenAPIVersion)
	doc.Servers = slices.Clone(e.cfg.Servers)
	if e.cfg.Info != nil {
		info := *e.cfg.Info
		doc.Info = &info
	}

	if len(e.cfg.CodeDescriptions) > 0 {
		doc.Components.Responses = make(map[string]*openapi.Response, len(e.cfg.CodeDescriptions))
		codes := make([]int, 0, len(e.cfg.CodeDescriptions))
		for code := range e.cfg.CodeDescriptions {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			doc.Components.Responses[strconv.Itoa(code)] = &openapi.Response{
				Description: e.cfg.CodeDescriptions[code],
			}
		}
	}

	if e.cfg.Security != "" {
		scheme, err := ResolveSecurity(e.cfg.Security)
		if err != nil {
			return nil, err
		}
		doc.Components.SecuritySchemes = map[string]*openapi.SecurityScheme{e.cfg.Security: scheme}
	}
	return doc, nil
}

// RecordExchange merges one observed exchange into the document and stages
// the result. The first capture of a run begins or resumes the document.
//
// Security is resolved before the document is touched, so a capture
// rejected with a *SecurityError leaves the document unchanged. Operations
// merged by earlier captures are never rolled back.
func (e *Engine) RecordExchange(ex *Exchange) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc == nil {
		if err := e.beginLocked(); err != nil {
			return err
		}
	}

	route := e.routes.classify(ex)
	logger := e.logger.With("method", route.Method, "path", route.URI)

	var (
		bag   Bag
		rules map[string]string
	)
	if route.RequestType != "" {
		if e.cfg.Annotations != nil {
			bag = e.cfg.Annotations.Annotations(route.RequestType)
		}
		if e.cfg.Rules != nil {
			rules = e.cfg.Rules.Rules(route.RequestType)
		}
	}

	security := e.cfg.Security
	if route.RequestType != "" {
		var err error
		security, err = operationSecurity(bag, e.cfg.Security)
		if err != nil {
			logger.Error("capture aborted", "error", err)
			return err
		}
	}

	op := e.operation(route)

	e.addTag(op, route.URI)
	e.addRequestBody(op, route.Method, ex.RequestContentType)
	e.addHeaders(op)

	if route.RequestType != "" {
		if route.Method == "get" || route.Method == "delete" {
			op.Parameters = append(op.Parameters, queryParameters(op, rules, bag)...)
		} else {
			e.addSharedSchema(op, route, ex, rules, bag)
		}

		summary := bag.Text("summary", "")
		if summary == "" {
			summary = requestSummary(route.RequestType)
		}
		op.Summary = summary
		op.Description = bag.Text("description", "")
	}

	if err := addSecurity(e.doc, op, security); err != nil {
		return err
	}

	e.responses.record(op, ex, bag)

	if err := e.store.SaveStaged(e.doc); err != nil {
		logger.Error("failed to stage document", "error", err)
		return err
	}

	logger.Debug("captured exchange", "status", ex.Status, "request_type", route.RequestType)
	return nil
}

// operation returns the operation for the route, inserting a fresh one on
// first sight.
func (e *Engine) operation(route Route) *openapi.Operation {
	item, ok := e.doc.Paths[route.URI]
	if !ok {
		item = make(openapi.PathItem)
		e.doc.Paths[route.URI] = item
	}

	op, ok := item[route.Method]
	if !ok {
		op = openapi.NewOperation(pathParameters(route.URI))
		item[route.Method] = op
	}
	return op
}

func (e *Engine) addTag(op *openapi.Operation, uri string) {
	tag := e.routes.tag(uri)
	if tag != "" && !slices.Contains(op.Tags, tag) {
		op.Tags = append(op.Tags, tag)
	}
}

// addRequestBody records the media type the request body was sent with.
// Requests without a Content-Type are recorded as JSON for POST and as a
// form for PUT; other methods without one are not recorded.
func (e *Engine) addRequestBody(op *openapi.Operation, method, contentType string) {
	mt := mediaType(contentType)
	if mt == "" {
		switch method {
		case "post":
			mt = defaultContentType
		case "put":
			mt = formContentType
		default:
			return
		}
	}

	if op.RequestBody == nil {
		op.RequestBody = &openapi.RequestBody{Content: make(map[string]*openapi.MediaType)}
	}
	if _, ok := op.RequestBody.Content[mt]; !ok {
		op.RequestBody.Content[mt] = &openapi.MediaType{Schema: &openapi.Schema{Type: "object"}}
	}
}

func (e *Engine) addHeaders(op *openapi.Operation) {
	for _, p := range headerParameters(e.cfg.Headers) {
		if !hasParameterIn(op, "header", p.Name) {
			op.Parameters = append(op.Parameters, p)
		}
	}
}

// addSharedSchema refreshes the shared schema of the route's action when
// this capture carries more fields than any earlier capture of it, and
// references it from a single body parameter.
func (e *Engine) addSharedSchema(op *openapi.Operation, route Route, ex *Exchange, rules map[string]string, bag Bag) {
	name := route.Action + objectSuffix

	if ex.fieldCount() <= observedFields(e.doc.Components.Parameters[name]) {
		return
	}

	if !hasBodyParameter(op) {
		op.Parameters = append(op.Parameters, bodyParameter(name))
	}

	schema := sharedSchema(rules, bag)
	schema.Example = SynthesizeExample(ex.Payload, schema.Properties)

	if e.doc.Components.Parameters == nil {
		e.doc.Components.Parameters = make(map[string]*openapi.Schema)
	}
	e.doc.Components.Parameters[name] = schema
}

// observedFields returns the number of top-level fields of the capture a
// shared schema was last built from. The example keeps the payload keys,
// and stays a map after the staged JSON round trip.
func observedFields(schema *openapi.Schema) int {
	if schema == nil {
		return 0
	}
	if m, ok := schema.Example.(map[string]any); ok {
		return len(m)
	}
	return 0
}

// Commit writes the document as the production document, clears the
// staged state and resets the engine to an empty document.
func (e *Engine) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc == nil {
		if err := e.beginLocked(); err != nil {
			return err
		}
	}

	if err := e.store.Commit(e.doc); err != nil {
		return fmt.Errorf("synth: commit document: %w", err)
	}
	e.logger.Info("committed document", "paths", len(e.doc.Paths))
	e.doc = nil
	return nil
}

// Discard drops the in-memory document and the staged state without
// committing.
func (e *Engine) Discard() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.doc = nil
	return e.store.ClearStaged()
}

// CurrentDocument returns a deep copy of the document being accumulated,
// beginning or resuming it if no capture happened yet.
func (e *Engine) CurrentDocument() (*openapi.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc == nil {
		if err := e.beginLocked(); err != nil {
			return nil, err
		}
	}
	return e.doc.Clone()
}
