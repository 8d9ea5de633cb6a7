package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

const maxMultipartMemory = 1 << 20

// payload is a decoded request body keyed by field name. Form values are
// stored as JSON strings so both encodings share one accessor set.
type payload map[string]json.RawMessage

// requestError is a body that could not be decoded.
type requestError struct {
	status int
	body   any
}

func (e *requestError) write(w http.ResponseWriter) {
	writeJSON(w, e.status, e.body)
}

func detailError(status int, msg string) *requestError {
	return &requestError{status: status, body: map[string]string{"detail": msg}}
}

// decodePayload parses a JSON object body, or a form body unless jsonOnly
// is set. An empty body decodes to an empty payload whatever its type.
func decodePayload(r *http.Request, jsonOnly bool) (payload, *requestError) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, detailError(http.StatusRequestEntityTooLarge, "Request body too large.")
		}
		return nil, detailError(http.StatusBadRequest, "Could not read request body.")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return payload{}, nil
	}

	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch {
	case mediaType == "application/json":
		return decodeJSONObject(body)
	case !jsonOnly && mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, detailError(http.StatusBadRequest, "Form parse error - "+err.Error())
		}
		return formPayload(values), nil
	case !jsonOnly && mediaType == "multipart/form-data":
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, detailError(http.StatusBadRequest, "Multipart form parse error - "+err.Error())
		}
		return formPayload(r.MultipartForm.Value), nil
	default:
		return nil, detailError(http.StatusUnsupportedMediaType,
			fmt.Sprintf("Unsupported media type \"%s\" in request.", contentType))
	}
}

func decodeJSONObject(body []byte) (payload, *requestError) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, detailError(http.StatusBadRequest, "JSON parse error - "+err.Error())
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, &requestError{
			status: http.StatusBadRequest,
			body: map[string][]string{
				"non_field_errors": {fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonKind(raw))},
			},
		}
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, detailError(http.StatusBadRequest, "JSON parse error - "+err.Error())
	}
	return p, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "list"
	case string:
		return "str"
	case float64:
		return "float"
	case bool:
		return "bool"
	case nil:
		return "NoneType"
	default:
		return "object"
	}
}

func formPayload(values map[string][]string) payload {
	p := make(payload, len(values))
	for name, vs := range values {
		if len(vs) == 0 {
			continue
		}
		encoded, _ := json.Marshal(vs[0])
		p[name] = encoded
	}
	return p
}

// str returns the field as a string. Numbers and booleans are converted to
// their literal text. Absent and null fields return nil.
func (p payload) str(name string) *string {
	raw, ok := p[name]
	if !ok || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	s = string(bytes.TrimSpace(raw))
	return &s
}

// raw returns the undecoded field value, or nil when absent.
func (p payload) raw(name string) json.RawMessage {
	return p[name]
}

// pk returns a primary key field. A present value that is not an integer
// or integer string yields a DRF-style type message.
func (p payload) pk(name string) (*int64, string) {
	raw, ok := p[name]
	if !ok || isNull(raw) {
		return nil, ""
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &v, ""
		}
		return nil, "Incorrect type. Expected pk value, received str."
	}
	var v any
	_ = json.Unmarshal(raw, &v)
	return nil, fmt.Sprintf("Incorrect type. Expected pk value, received %s.", jsonKind(v))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
