// Package config loads the settings of the documentation capture: whether
// capture is on, how paths are prefixed, which servers, info block,
// default response descriptions, default headers and security identifier
// end up in the document, and where the document is stored.
//
// Files may be YAML, TOML or JSON. AUTODOC_* environment variables
// override file values.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	"github.com/vitalvas/autodoc/openapi"
	"github.com/vitalvas/autodoc/store"
	"github.com/vitalvas/autodoc/synth"
	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"
)

// AppServerDescription describes the server derived from AppURL.
const AppServerDescription = "This app server URL"

// Config is the capture configuration.
type Config struct {
	Enabled          bool              `mapstructure:"enabled"`
	AppURL           string            `mapstructure:"app_url" validate:"omitempty,url"`
	BasePath         string            `mapstructure:"base_path"`
	OpenAPIVersion   string            `mapstructure:"openapi_version" validate:"required"`
	Servers          []Server          `mapstructure:"servers" validate:"dive"`
	Info             Info              `mapstructure:"info"`
	CodeDescriptions map[int]string    `mapstructure:"code_descriptions" validate:"dive,keys,min=100,max=599,endkeys"`
	Headers          map[string]string `mapstructure:"headers"`
	Security         string            `mapstructure:"security"`
	Annotations      string            `mapstructure:"annotations"`
	Store            Store             `mapstructure:"store"`
}

// Server is an entry of the document server list.
type Server struct {
	URL         string `mapstructure:"url" validate:"required"`
	Description string `mapstructure:"description"`
}

// Info is the document info block. Description is a text/template
// rendered with the Config as data.
type Info struct {
	Title          string  `mapstructure:"title"`
	Description    string  `mapstructure:"description"`
	Version        string  `mapstructure:"version"`
	TermsOfService string  `mapstructure:"terms_of_service"`
	Contact        Contact `mapstructure:"contact"`
	License        License `mapstructure:"license"`
}

// Contact is the info contact.
type Contact struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email" validate:"omitempty,email"`
	URL   string `mapstructure:"url" validate:"omitempty,url"`
}

// License is the info license. Empty fields are pruned.
type License struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url" validate:"omitempty,url"`
}

// Store selects the document store backend.
type Store struct {
	Kind       string `mapstructure:"kind"`
	Path       string `mapstructure:"path"`
	StagedPath string `mapstructure:"staged_path"`
}

// envOverrides maps environment variables to configuration keys.
var envOverrides = []struct {
	env  string
	path []string
	cast func(string) (any, error)
}{
	{"AUTODOC_ENABLED", []string{"enabled"}, func(s string) (any, error) { return cast.ToBoolE(s) }},
	{"AUTODOC_APP_URL", []string{"app_url"}, nil},
	{"AUTODOC_BASE_PATH", []string{"base_path"}, nil},
	{"AUTODOC_OPENAPI_VERSION", []string{"openapi_version"}, nil},
	{"AUTODOC_SECURITY", []string{"security"}, nil},
	{"AUTODOC_ANNOTATIONS", []string{"annotations"}, nil},
	{"AUTODOC_STORE_KIND", []string{"store", "kind"}, nil},
	{"AUTODOC_STORE_PATH", []string{"store", "path"}, nil},
	{"AUTODOC_STORE_STAGED_PATH", []string{"store", "staged_path"}, nil},
}

var validate = validator.New()

// Load reads the configuration file at path, applies environment
// overrides and defaults, and validates the result. An empty path loads
// from the environment only.
func Load(path string) (*Config, error) {
	raw := make(map[string]any)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Source: path, Operation: "read", Err: err}
		}
		raw, err = parse(path, data)
		if err != nil {
			return nil, &Error{Source: path, Operation: "parse", Err: err}
		}
	}

	if err := applyEnv(raw, os.LookupEnv); err != nil {
		return nil, &Error{Source: "env", Operation: "decode", Err: err}
	}

	return FromMap(raw)
}

// FromMap decodes, defaults and validates a configuration from raw
// key-value data.
func FromMap(raw map[string]any) (*Config, error) {
	cfg := Default()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &Error{Source: "config", Operation: "decode", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for absent keys.
func Default() *Config {
	return &Config{
		OpenAPIVersion: synth.DefaultOpenAPIVersion,
		Store:          Store{Kind: store.KindJSON},
	}
}

// Validate checks field constraints, default header names and the
// security identifier.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &Error{Source: "config", Operation: "validate", Err: fmt.Errorf("%w: %w", ErrInvalid, err)}
	}

	for name := range c.Headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return &Error{Source: "config", Operation: "validate", Err: fmt.Errorf("%w: invalid header name %q", ErrInvalid, name)}
		}
	}

	if err := synth.ValidateSecurity(c.Security); err != nil {
		return &Error{Source: "config", Operation: "validate", Err: err}
	}
	return nil
}

// DocumentServers returns the document server list: the application URL first,
// followed by the configured servers.
func (c *Config) DocumentServers() []openapi.Server {
	var servers []openapi.Server
	if c.AppURL != "" {
		servers = append(servers, openapi.Server{URL: c.AppURL, Description: AppServerDescription})
	}
	for _, s := range c.Servers {
		servers = append(servers, openapi.Server{URL: s.URL, Description: s.Description})
	}
	return servers
}

// RenderInfo builds the document info block. Empty license fields are
// pruned and the license dropped when none is left; the description is
// rendered as a text/template with the Config as data.
func (c *Config) RenderInfo() (*openapi.Info, error) {
	info := &openapi.Info{
		Title:          c.Info.Title,
		Version:        c.Info.Version,
		TermsOfService: c.Info.TermsOfService,
	}

	if c.Info.Description != "" {
		tmpl, err := template.New("description").Option("missingkey=error").Parse(c.Info.Description)
		if err != nil {
			return nil, &Error{Source: "info.description", Operation: "render", Err: err}
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, c); err != nil {
			return nil, &Error{Source: "info.description", Operation: "render", Err: err}
		}
		info.Description = buf.String()
	}

	if ct := c.Info.Contact; ct != (Contact{}) {
		info.Contact = &openapi.Contact{Name: ct.Name, Email: ct.Email, URL: ct.URL}
	}
	if lic := c.Info.License; lic != (License{}) {
		info.License = &openapi.License{Name: lic.Name, URL: lic.URL}
	}
	return info, nil
}

// StoreConfig returns the document store configuration. File backends
// without a staged_path stage next to the production document, so a run
// spread over several processes resumes the same document.
func (c *Config) StoreConfig() store.Config {
	staged := c.Store.StagedPath
	if staged == "" && c.Store.Path != "" {
		switch c.Store.Kind {
		case "", store.KindJSON, store.KindYAML:
			staged = store.DefaultStagedPath(c.Store.Path)
		}
	}
	return store.Config{Kind: c.Store.Kind, Path: c.Store.Path, StagedPath: staged}
}

// EngineConfig returns the engine configuration. When an annotations file
// is configured it is loaded into cat, which also serves as the rule
// source.
func (c *Config) EngineConfig(cat *synth.Catalog, logger *slog.Logger) (synth.Config, error) {
	info, err := c.RenderInfo()
	if err != nil {
		return synth.Config{}, err
	}

	if cat == nil {
		cat = synth.NewCatalog()
	}
	if c.Annotations != "" {
		f, err := os.Open(c.Annotations)
		if err != nil {
			return synth.Config{}, &Error{Source: c.Annotations, Operation: "read", Err: err}
		}
		defer f.Close()
		if err := cat.LoadAnnotations(f); err != nil {
			return synth.Config{}, &Error{Source: c.Annotations, Operation: "parse", Err: err}
		}
	}

	return synth.Config{
		OpenAPIVersion:   c.OpenAPIVersion,
		BasePath:         c.BasePath,
		Servers:          c.DocumentServers(),
		Info:             info,
		CodeDescriptions: c.CodeDescriptions,
		Headers:          c.Headers,
		Security:         c.Security,
		Annotations:      cat,
		Rules:            cat,
		Logger:           logger,
	}, nil
}

// NewEngine builds the configured store and an engine writing to it.
func (c *Config) NewEngine(cat *synth.Catalog, logger *slog.Logger) (*synth.Engine, store.DocumentStore, error) {
	st, err := store.New(c.StoreConfig())
	if err != nil {
		return nil, nil, err
	}

	ecfg, err := c.EngineConfig(cat, logger)
	if err != nil {
		return nil, nil, err
	}

	engine, err := synth.New(st, ecfg)
	if err != nil {
		return nil, nil, err
	}
	return engine, st, nil
}

// parse decodes a configuration file by extension.
func parse(path string, data []byte) (map[string]any, error) {
	raw := make(map[string]any)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	if raw == nil {
		raw = make(map[string]any)
	}
	return raw, nil
}

// applyEnv overrides raw with the AUTODOC_* variables that are set.
func applyEnv(raw map[string]any, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		value, ok := lookup(o.env)
		if !ok {
			continue
		}

		var v any = value
		if o.cast != nil {
			var err error
			if v, err = o.cast(value); err != nil {
				return fmt.Errorf("%s: %w", o.env, err)
			}
		}
		setPath(raw, o.path, v)
	}
	return nil
}

// setPath stores v under a nested key path, creating intermediate maps.
func setPath(raw map[string]any, path []string, v any) {
	m := raw
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			if existing, ok := m[key].(map[any]any); ok {
				for k, val := range existing {
					next[cast.ToString(k)] = val
				}
			}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// IsInvalid reports whether err is a configuration validation failure,
// including an invalid security identifier.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid) || errors.Is(err, synth.ErrInvalidSecurityIdentifier)
}
