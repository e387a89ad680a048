package security

import (
	"bytes"
	"io"
	"mime"
	"net/http"

	"github.com/noah-isme/pcquote-api/internal/common"
)

// Error codes written by JSONBody.
const (
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia    = "UNSUPPORTED_MEDIA_TYPE"
	DefaultJSONBodyMaxBytes = 1 << 20
)

// JSONBody guards endpoints that accept a JSON document: bodies must be
// declared as application/json and fit within Max bytes. Handlers receive the
// fully buffered body, never a truncated one.
type JSONBody struct {
	Max int64
}

func (j JSONBody) limit() int64 {
	if j.Max > 0 {
		return j.Max
	}
	return DefaultJSONBodyMaxBytes
}

// Middleware applies the guard to every request carrying a body.
func (j JSONBody) Middleware(next http.Handler) http.Handler {
	maxBytes := j.limit()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" && !isJSON(ct) {
			common.JSONError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMedia,
				"request body must be application/json", map[string]string{"contentType": ct})
			return
		}
		if r.ContentLength > maxBytes {
			payloadTooLarge(w, maxBytes)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		_ = r.Body.Close()
		switch {
		case err != nil:
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "could not read request body", nil)
			return
		case int64(len(body)) > maxBytes:
			payloadTooLarge(w, maxBytes)
			return
		case len(body) == 0:
			r.Body = http.NoBody
		default:
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

// isJSON accepts application/json and the +json structured suffix.
func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || (len(mt) > 5 && mt[len(mt)-5:] == "+json")
}

func payloadTooLarge(w http.ResponseWriter, max int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
		"request body too large", map[string]int64{"maxBytes": max})
}
