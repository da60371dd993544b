package synth

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/vitalvas/autodoc/openapi"
)

// defaultContentType is assumed when a response carries no Content-Type.
const defaultContentType = "application/json"

// mediaType returns the lower-case media type of a Content-Type header
// without its parameters.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// previewable reports whether bodies of the media type can be embedded as
// examples: only application/* and text/* are.
func previewable(mt string) bool {
	top, _, _ := strings.Cut(mt, "/")
	return top == "application" || top == "text"
}

func isJSON(mt string) bool {
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// responseRecorder records one response per status code of an operation.
type responseRecorder struct {
	descriptions map[int]string
}

// record appends the response content type to op and stores the response
// for its status code unless one was already recorded.
func (rr responseRecorder) record(op *openapi.Operation, ex *Exchange, bag Bag) {
	mt := mediaType(ex.ResponseContentType)
	if mt == "" {
		mt = defaultContentType
	}
	if !slices.Contains(op.ContentTypes, mt) {
		op.ContentTypes = append(op.ContentTypes, mt)
	}

	code := strconv.Itoa(ex.Status)
	if _, ok := op.Responses[code]; ok {
		return
	}

	if !previewable(mt) {
		op.Responses[code] = &openapi.Response{Unavailable: true}
		return
	}
	op.Responses[code] = buildResponse(ex.ResponseBody, mt, rr.description(ex.Status, bag))
}

// description resolves a response description: the "_<code>" annotation,
// then the configured default for the code, then the HTTP reason phrase.
func (rr responseRecorder) description(code int, bag Bag) string {
	if s, ok := bag.String("_" + strconv.Itoa(code)); ok {
		return s
	}
	if s, ok := rr.descriptions[code]; ok && s != "" {
		return s
	}
	return http.StatusText(code)
}

// buildResponse embeds the body as an example. JSON bodies are decoded
// into an object example and an empty JSON body is an object without one;
// other text and malformed JSON fall back to a raw string example.
func buildResponse(body []byte, mt, description string) *openapi.Response {
	if isJSON(mt) {
		if len(bytes.TrimSpace(body)) == 0 {
			return &openapi.Response{
				Description: description,
				Content: map[string]*openapi.MediaType{
					mt: {Schema: &openapi.Schema{Type: "object"}},
				},
			}
		}

		var decoded any
		if json.Unmarshal(body, &decoded) == nil {
			return &openapi.Response{
				Description: description,
				Content: map[string]*openapi.MediaType{
					mt: {Schema: &openapi.Schema{Type: "object", Example: decoded}},
				},
			}
		}
	}

	return &openapi.Response{
		Description: description,
		Content: map[string]*openapi.MediaType{
			mt: {Schema: &openapi.Schema{Type: "string", Example: string(body)}},
		},
	}
}
