package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/vitalvas/autodoc/synth"
)

// errBodyTooLarge is reported when a request body exceeds the capture limit.
var errBodyTooLarge = errors.New("capture: request body exceeds capture limit")

// readPayload assembles the structured input of a request: query
// parameters merged with the decoded body. The body is restored so the
// handler reads it unchanged. Bodies that cannot be decoded are returned
// raw as a string.
func readPayload(r *http.Request, limit int64) (any, error) {
	payload := valuesMap(r.URL.Query())

	if r.Body == nil || r.Body == http.NoBody {
		return payload, nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return payload, err
	}
	if int64(len(buf)) > limit {
		r.Body = readCloser{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
		return payload, errBodyTooLarge
	}
	r.Body = readCloser{bytes.NewReader(buf), r.Body}

	if len(bytes.TrimSpace(buf)) == 0 {
		return payload, nil
	}

	mt, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mt == "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(buf))
		if err != nil {
			return string(buf), nil
		}
		mergeInto(payload, valuesMap(form))

	case mt == "multipart/form-data":
		form, err := multipartMap(buf, params["boundary"])
		if err != nil {
			return string(buf), nil
		}
		mergeInto(payload, form)

	case mt == "" || mt == "application/json" || strings.HasSuffix(mt, "+json"):
		var decoded any
		if err := json.Unmarshal(buf, &decoded); err != nil {
			return string(buf), nil
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			return decoded, nil
		}
		mergeInto(payload, obj)

	default:
		return string(buf), nil
	}

	return payload, nil
}

func valuesMap(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = v
		}
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

// multipartMap reads form fields and files of a multipart body. Files are
// represented by synth.UploadedFile.
func multipartMap(body []byte, boundary string) (map[string]any, error) {
	if boundary == "" {
		return nil, http.ErrMissingBoundary
	}

	out := make(map[string]any)
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		name := part.FormName()
		if name == "" {
			continue
		}

		var value any
		if filename := part.FileName(); filename != "" {
			n, err := io.Copy(io.Discard, part)
			if err != nil {
				return nil, err
			}
			value = synth.UploadedFile{Filename: filename, Size: n}
		} else {
			data, err := io.ReadAll(part)
			if err != nil {
				return nil, err
			}
			value = string(data)
		}

		switch existing := out[name].(type) {
		case nil:
			out[name] = value
		case []any:
			out[name] = append(existing, value)
		default:
			out[name] = []any{existing, value}
		}
	}
}

// readCloser reads from a replacement reader and closes the original body.
type readCloser struct {
	io.Reader
	io.Closer
}
