package capture

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate      = validator.New()
	schemaDecoder = schema.NewDecoder()
)

func init() {
	schemaDecoder.SetAliasTag("json")
	schemaDecoder.IgnoreUnknownKeys(true)

	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := fieldName(f); name != "" {
			return name
		}
		return f.Name
	})
}

// maxFormMemory is the memory budget of multipart form parsing.
const maxFormMemory = 32 << 20

// Handle returns a handler that decodes and validates a Req before calling
// fn, and reports Req as the bound request type of the exchange. GET and
// DELETE requests decode from the query string, other methods from the
// JSON or form body.
//
// Decoding failures answer 400 and validation failures 422, both as a JSON
// error object.
func Handle[Req any](fn func(w http.ResponseWriter, r *http.Request, req Req)) http.Handler {
	typeName := TypeName[Req]()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Bind(r, typeName)

		req, err := decodeRequest[Req](r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		if err := validateRequest(req); err != nil {
			var valErrs validator.ValidationErrors
			if errors.As(err, &valErrs) {
				fields := make(map[string]string, len(valErrs))
				for _, fe := range valErrs {
					fields[fe.Field()] = formatValidationError(fe)
				}
				writeError(w, http.StatusUnprocessableEntity, "validation failed", fields)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		fn(w, r, req)
	})
}

// TypeName returns the name a request type is documented under: the
// declared name of T, or of the struct T points to.
func TypeName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func decodeRequest[Req any](r *http.Request) (Req, error) {
	var req Req

	target := any(&req)
	reqType := reflect.TypeFor[Req]()
	if reqType.Kind() == reflect.Pointer {
		val := reflect.New(reqType.Elem())
		req = val.Interface().(Req)
		target = val.Interface()
	}

	if r.Method == http.MethodGet || r.Method == http.MethodDelete {
		if err := schemaDecoder.Decode(target, r.URL.Query()); err != nil {
			return req, errors.New("failed to decode query: " + err.Error())
		}
		return req, nil
	}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, errors.New("failed to decode form: " + err.Error())
		}
		if err := schemaDecoder.Decode(target, r.Form); err != nil {
			return req, errors.New("failed to decode form: " + err.Error())
		}
	default:
		if r.Body == nil {
			return req, nil
		}
		if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
			return req, errors.New("failed to decode body: " + err.Error())
		}
	}
	return req, nil
}

func validateRequest(req any) error {
	v := reflect.ValueOf(req)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(req)
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]any{"error": message}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	_ = json.NewEncoder(w).Encode(body)
}

// fieldName returns the documented name of a struct field: its json tag
// name, or the Go field name.
func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}
