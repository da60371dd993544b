package capture

import (
	"bytes"
	"net/http"
)

// responseRecorder tees the response body into a bounded buffer while
// writing it through to the client.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	limit       int64
	truncated   bool
	wroteHeader bool
}

func newResponseRecorder(w http.ResponseWriter, limit int64) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK, limit: limit}
}

// WriteHeader records the status code.
func (rw *responseRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write sniffs the content type on the first write, the way net/http does,
// so the captured header matches what the client receives.
func (rw *responseRecorder) Write(p []byte) (int, error) {
	if !rw.wroteHeader {
		if rw.Header().Get("Content-Type") == "" && len(p) > 0 {
			rw.Header().Set("Content-Type", http.DetectContentType(p))
		}
		rw.WriteHeader(http.StatusOK)
	}

	if !rw.truncated {
		room := rw.limit - int64(rw.body.Len())
		switch {
		case room >= int64(len(p)):
			rw.body.Write(p)
		default:
			if room > 0 {
				rw.body.Write(p[:room])
			}
			rw.truncated = true
		}
	}

	return rw.ResponseWriter.Write(p)
}

// Flush implements http.Flusher.
func (rw *responseRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for middleware chaining.
func (rw *responseRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
