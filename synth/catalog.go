package synth

import (
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Bag is the annotation metadata declared for one request type: human
// overrides keyed by name. Recognized keys are "summary", "description",
// "security", "_<status code>" for response descriptions, and field names
// for parameter descriptions.
type Bag map[string]any

// Lookup returns the raw value stored under key.
func (b Bag) Lookup(key string) (any, bool) {
	v, ok := b[key]
	return v, ok
}

// String returns the value under key only when it is a string.
func (b Bag) String(key string) (string, bool) {
	s, ok := b[key].(string)
	return s, ok
}

// Text returns the value under key coerced to a string, or fallback when
// the key is absent or the value is empty or not coercible.
func (b Bag) Text(key, fallback string) string {
	v, ok := b[key]
	if !ok || v == nil {
		return fallback
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return fallback
	}
	return s
}

// AnnotationSource returns the annotation bag declared for a request type.
// Unknown types yield an empty bag.
type AnnotationSource interface {
	Annotations(typeName string) Bag
}

// RuleSource returns the validation rules declared for a request type as
// field name -> pipe-delimited rule expression (e.g. "required|integer").
type RuleSource interface {
	Rules(typeName string) map[string]string
}

// Catalog is an in-memory AnnotationSource and RuleSource populated ahead
// of a test run. It is safe for concurrent use.
type Catalog struct {
	mu          sync.RWMutex
	rules       map[string]map[string]string
	annotations map[string]Bag
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		rules:       make(map[string]map[string]string),
		annotations: make(map[string]Bag),
	}
}

// Register declares the validation rules of a request type, replacing any
// previous declaration.
func (c *Catalog) Register(typeName string, rules map[string]string) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rules[typeName] = maps.Clone(rules)
	return c
}

// Annotate merges bag into the annotations of a request type. Keys in bag
// override keys already present.
func (c *Catalog) Annotate(typeName string, bag Bag) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.annotations[typeName]
	if !ok {
		existing = make(Bag, len(bag))
		c.annotations[typeName] = existing
	}
	maps.Copy(existing, bag)
	return c
}

// LoadAnnotations reads a YAML side metadata file mapping request type
// names to annotation bags:
//
//	CreateUserRequest:
//	  summary: Create a user
//	  security: bearerAuth
//	  _201: The user was created
//	  name: Display name shown to other users
func (c *Catalog) LoadAnnotations(r io.Reader) error {
	var raw map[string]Bag
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("synth: decode annotations: %w", err)
	}

	for typeName, bag := range raw {
		c.Annotate(typeName, bag)
	}
	return nil
}

// Annotations implements AnnotationSource.
func (c *Catalog) Annotations(typeName string) Bag {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.annotations[typeName])
}

// Rules implements RuleSource.
func (c *Catalog) Rules(typeName string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.rules[typeName])
}
