package capture

import (
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/vitalvas/autodoc/synth"
)

// Annotated is implemented by request types that declare their own
// documentation metadata, e.g. summary, security or "_<code>" response
// descriptions.
type Annotated interface {
	Annotations() synth.Bag
}

var timeType = reflect.TypeFor[time.Time]()

// RulesOf derives the validation rules of a request struct from its
// `validate` tags, in the pipe-delimited rule vocabulary of the engine:
//
//	Name  string `json:"name" validate:"required,max=64"`   -> "required|max:64|string"
//	Age   *int   `json:"age" validate:"omitempty,min=0"`    -> "nullable|min:0|integer"
//
// The Go kind of each field is appended as a type token, so explicit tag
// tokens take precedence during type inference. Fields named "-" in their
// json tag are skipped.
func RulesOf[T any]() map[string]string {
	t := structType(reflect.TypeFor[T]())
	if t == nil {
		return nil
	}

	rules := make(map[string]string)
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := fieldName(f)
		if name == "" {
			continue
		}
		rules[name] = strings.Join(fieldRules(f), "|")
	}
	return rules
}

// AnnotationsOf collects the annotation bag of a request struct: the bag
// returned by its Annotated implementation merged with field descriptions
// from `doc` struct tags.
func AnnotationsOf[T any]() synth.Bag {
	bag := make(synth.Bag)

	t := structType(reflect.TypeFor[T]())
	if t == nil {
		return bag
	}

	if a, ok := reflect.New(t).Interface().(Annotated); ok {
		maps.Copy(bag, a.Annotations())
	}

	for i := range t.NumField() {
		f := t.Field(i)
		doc := f.Tag.Get("doc")
		if doc == "" || !f.IsExported() {
			continue
		}
		if name := fieldName(f); name != "" {
			bag[name] = doc
		}
	}
	return bag
}

// Register declares the rules and annotations of T in cat under TypeName[T].
func Register[T any](cat *synth.Catalog) {
	name := TypeName[T]()
	cat.Register(name, RulesOf[T]())
	if bag := AnnotationsOf[T](); len(bag) > 0 {
		cat.Annotate(name, bag)
	}
}

func fieldRules(f reflect.StructField) []string {
	var tokens []string
	for _, tag := range strings.Split(f.Tag.Get("validate"), ",") {
		tag = strings.TrimSpace(tag)
		switch {
		case tag == "":
		case tag == "omitempty":
			tokens = append(tokens, "nullable")
		case strings.Contains(tag, "="):
			k, v, _ := strings.Cut(tag, "=")
			tokens = append(tokens, k+":"+v)
		default:
			tokens = append(tokens, tag)
		}
	}

	ft := f.Type
	if ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
		if !slices.Contains(tokens, "nullable") && !slices.Contains(tokens, "required") {
			tokens = append([]string{"nullable"}, tokens...)
		}
	}

	if kind := kindRule(ft); kind != "" {
		tokens = append(tokens, kind)
	}
	return tokens
}

// kindRule maps a Go type to the rule token naming its coarse type.
func kindRule(t reflect.Type) string {
	if t == timeType {
		return "date"
	}

	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "numeric"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return "array"
	default:
		return ""
	}
}

func structType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}
