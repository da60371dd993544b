package synth

import (
	"encoding/json"
	"fmt"

	"github.com/vitalvas/autodoc/openapi"
)

// uploadedFilePlaceholder replaces uploaded files in examples.
const uploadedFilePlaceholder = "[uploaded_file]"

// typeDefaults holds the example value substituted for a null field of a
// declared type.
var typeDefaults = map[string]any{
	"object":  "null",
	"boolean": false,
	"date":    "0000-00-00",
	"integer": 0,
	"string":  "",
	"double":  0,
}

// SynthesizeExample builds a representative example from a captured
// payload. Values that are not plain data (files, arbitrary Go values) are
// replaced by a readable placeholder, and null fields with a declared type
// get that type's default value. Payloads that are not objects pass
// through unchanged.
func SynthesizeExample(payload any, properties map[string]*openapi.Schema) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	return fillNulls(placeholders(obj), properties)
}

// placeholders replaces every non-data leaf with a placeholder string.
func placeholders(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = placeholders(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = placeholders(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case nil, string, bool, json.Number,
		float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val
	case UploadedFile, *UploadedFile:
		return uploadedFilePlaceholder
	default:
		return fmt.Sprintf("%T", val)
	}
}

// fillNulls substitutes type defaults for null fields that have a declared
// property type, descending into nested objects and arrays.
func fillNulls(v any, properties map[string]*openapi.Schema) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			if item == nil {
				if prop, ok := properties[k]; ok && prop != nil {
					if def, ok := typeDefaults[prop.Type]; ok {
						val[k] = def
					}
				}
				continue
			}
			val[k] = fillNulls(item, properties)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = fillNulls(item, properties)
		}
		return val
	default:
		return val
	}
}
