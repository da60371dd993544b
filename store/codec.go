package store

import (
	"encoding/json"
	"strings"

	"github.com/vitalvas/autodoc/openapi"
	"gopkg.in/yaml.v3"
)

// Codec serializes documents for a backend.
type Codec interface {
	Marshal(doc *openapi.Document) ([]byte, error)
	Unmarshal(data []byte) (*openapi.Document, error)
}

// JSONCodec encodes documents as indented JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(doc *openapi.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func (JSONCodec) Unmarshal(data []byte) (*openapi.Document, error) {
	var doc openapi.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// YAMLCodec encodes documents as YAML.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(doc *openapi.Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

func (YAMLCodec) Unmarshal(data []byte) (*openapi.Document, error) {
	var doc openapi.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CodecFor returns the codec matching a file extension, defaulting to JSON.
func CodecFor(path string) Codec {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return YAMLCodec{}
	}
	return JSONCodec{}
}
