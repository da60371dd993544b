package synth

// Exchange is one completed request/response pair handed to the engine by
// the capture trigger.
type Exchange struct {
	// Method is the request HTTP method.
	Method string

	// Pattern is the route pattern the router matched, e.g.
	// "GET /api/users/{id}" for net/http.ServeMux or "/api/users/{id:int}".
	Pattern string

	// BoundTypes lists the type names of the parameters the handler bound
	// from the request, in declaration order. Empty for plain handlers.
	BoundTypes []string

	// RequestContentType is the request Content-Type header.
	RequestContentType string

	// Payload is the structured request input: a map[string]any merging
	// query parameters and the decoded body, or the raw body when it could
	// not be decoded.
	Payload any

	// Status is the response status code.
	Status int

	// ResponseContentType is the response Content-Type header.
	ResponseContentType string

	// ResponseBody is the captured response body.
	ResponseBody []byte
}

// UploadedFile stands in for a multipart file part in a Payload.
type UploadedFile struct {
	Filename string
	Size     int64
}

// fieldCount returns the number of top-level input fields in the payload.
func (e *Exchange) fieldCount() int {
	if m, ok := e.Payload.(map[string]any); ok {
		return len(m)
	}
	return 0
}
