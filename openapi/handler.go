package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocsUI selects which interactive documentation UI to serve.
type DocsUI int

const (
	DocsSwaggerUI DocsUI = iota
	DocsRapiDoc
	DocsRedoc
)

// Source provides the committed document served by Handle. It is read on
// every request, so a document committed after Handle was called is
// picked up without a restart.
type Source interface {
	ReadProduction() (*Document, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() (*Document, error)

// ReadProduction calls f.
func (f SourceFunc) ReadProduction() (*Document, error) {
	return f()
}

// HandleConfig configures the endpoints registered by Handle.
type HandleConfig struct {
	// UI selects the interactive docs UI (default: DocsSwaggerUI).
	UI DocsUI

	// Title overrides the HTML page title (default: document info.title).
	Title string

	// JSONFilename is the path for the JSON document endpoint
	// (default: "schema.json"). Set to "-" to disable.
	//
	// Relative paths are joined with the base path:
	//
	//	"schema.json"       -> <basePath>/schema.json
	//	"data/openapi.json" -> <basePath>/data/openapi.json
	//
	// Absolute paths (starting with "/") are used as-is.
	JSONFilename string

	// YAMLFilename is the path for the YAML document endpoint
	// (default: "schema.yaml"). Set to "-" to disable.
	// Follows the same absolute/relative rules as JSONFilename.
	YAMLFilename string

	// DisableDocs disables the interactive HTML docs UI endpoint.
	DisableDocs bool

	// SwaggerUIConfig provides additional SwaggerUIBundle configuration options,
	// rendered as JavaScript object properties alongside url and dom_id.
	SwaggerUIConfig map[string]any
}

func (cfg HandleConfig) jsonFilename() string {
	if cfg.JSONFilename == "" {
		return "schema.json"
	}
	return cfg.JSONFilename
}

func (cfg HandleConfig) yamlFilename() string {
	if cfg.YAMLFilename == "" {
		return "schema.yaml"
	}
	return cfg.YAMLFilename
}

// resolvePath returns the full route path for a filename.
// Absolute filenames (starting with "/") are returned as-is.
// Relative filenames are joined under basePath.
func resolvePath(basePath, filename string) string {
	if strings.HasPrefix(filename, "/") {
		return filename
	}
	if basePath == "" {
		return "/" + filename
	}
	return basePath + "/" + filename
}

// Handle registers documentation endpoints for the committed document
// under basePath on mux:
//
//	<basePath>/            - interactive HTML docs (unless DisableDocs)
//	<JSONFilename path>    - document as JSON  (unless JSONFilename is "-")
//	<YAMLFilename path>    - document as YAML  (unless YAMLFilename is "-")
//
// The config parameter is optional; pass nil for defaults:
//
//	openapi.Handle(mux, "/docs", st, nil)
//
// A document that has not been committed yet is reported as 404.
func Handle(mux *http.ServeMux, basePath string, src Source, cfg *HandleConfig) {
	if cfg == nil {
		cfg = &HandleConfig{}
	}
	basePath = strings.TrimRight(basePath, "/")

	jsonFile := cfg.jsonFilename()
	yamlFile := cfg.yamlFilename()

	var jsonPath, yamlPath string

	if jsonFile != "-" {
		jsonPath = resolvePath(basePath, jsonFile)
		mux.Handle("GET "+jsonPath, documentHandler(src, "application/json", marshalJSON))
	}

	if yamlFile != "-" {
		yamlPath = resolvePath(basePath, yamlFile)
		mux.Handle("GET "+yamlPath, documentHandler(src, "application/x-yaml", yaml.Marshal))
	}

	if !cfg.DisableDocs {
		specURL := jsonPath
		if specURL == "" {
			specURL = yamlPath
		}

		// Skip docs registration when no document endpoint is available.
		if specURL != "" {
			registerDocs(mux, basePath, src, cfg, specURL)
		}
	}
}

func marshalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// documentHandler serves the committed document with the given encoder.
func documentHandler(src Source, contentType string, encode func(any) ([]byte, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		doc, err := src.ReadProduction()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				http.Error(w, "documentation has not been generated yet", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to read documentation", http.StatusInternalServerError)
			return
		}

		data, err := encode(doc)
		if err != nil {
			http.Error(w, "failed to serialize documentation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

// registerDocs registers a handler that serves the interactive HTML documentation UI.
func registerDocs(mux *http.ServeMux, basePath string, src Source, cfg *HandleConfig, specURL string) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		title := cfg.Title
		if title == "" {
			title = "API documentation"
			if doc, err := src.ReadProduction(); err == nil && doc.Info != nil && doc.Info.Title != "" {
				title = doc.Info.Title
			}
		}

		var page string
		switch cfg.UI {
		case DocsRapiDoc:
			page = rapidocTemplate(title, specURL)
		case DocsRedoc:
			page = redocTemplate(title, specURL)
		default:
			page = swaggerUITemplate(title, specURL, cfg.SwaggerUIConfig)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
	})

	if basePath == "" {
		mux.Handle("GET /{$}", handler)
	} else {
		mux.Handle("GET "+basePath, handler)
		mux.Handle("GET "+basePath+"/{$}", handler)
	}
}

func swaggerUITemplate(title, specPath string, config map[string]any) string {
	var extra string
	if len(config) > 0 {
		keys := make([]string, 0, len(config))
		for k := range config {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf strings.Builder
		for _, k := range keys {
			v, err := json.Marshal(config[k])
			if err != nil {
				continue
			}
			fmt.Fprintf(&buf, ", %s: %s", k, v)
		}
		extra = buf.String()
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>%s</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: %q, dom_id: "#swagger-ui"%s});
</script>
</body>
</html>`, html.EscapeString(title), specPath, extra)
}

func rapidocTemplate(title, specPath string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>%s</title>
<script type="module" src="https://unpkg.com/rapidoc/dist/rapidoc-min.js"></script>
</head>
<body>
<rapi-doc spec-url=%q></rapi-doc>
</body>
</html>`, html.EscapeString(title), specPath)
}

func redocTemplate(title, specPath string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>%s</title>
</head>
<body>
<redoc spec-url=%q></redoc>
<script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>`, html.EscapeString(title), specPath)
}
