package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type bodySink struct {
	called bool
	body   string
	length int64
}

func (s *bodySink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	s.called = true
	s.body = string(data)
	s.length = r.ContentLength
	w.WriteHeader(http.StatusNoContent)
}

func postJSON(body string, contentLength int64, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/price", strings.NewReader(body))
	req.ContentLength = contentLength
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestJSONBody(t *testing.T) {
	cases := []struct {
		name     string
		max      int64
		req      *http.Request
		status   int
		reaches  bool
		contains string
	}{
		{"within limit", 32, postJSON(`{"rows":[]}`, 11, "application/json"), http.StatusNoContent, true, ""},
		{"charset parameter", 32, postJSON(`{}`, 2, "application/json; charset=utf-8"), http.StatusNoContent, true, ""},
		{"structured suffix", 32, postJSON(`{}`, 2, "application/merge-patch+json"), http.StatusNoContent, true, ""},
		{"no content type", 32, postJSON(`{}`, 2, ""), http.StatusNoContent, true, ""},
		{"unknown length too large", 5, postJSON("excessive", -1, "application/json"), http.StatusRequestEntityTooLarge, false, CodePayloadTooLarge},
		{"declared length too large", 5, postJSON("12345", 100, "application/json"), http.StatusRequestEntityTooLarge, false, `"maxBytes":5`},
		{"form body", 32, postJSON("a=b", 3, "application/x-www-form-urlencoded"), http.StatusUnsupportedMediaType, false, CodeUnsupportedMedia},
		{"spreadsheet body", 32, postJSON("PK", 2, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"), http.StatusUnsupportedMediaType, false, CodeUnsupportedMedia},
		{"no body", 5, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil), http.StatusNoContent, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &bodySink{}
			rr := httptest.NewRecorder()
			JSONBody{Max: tc.max}.Middleware(sink).ServeHTTP(rr, tc.req)

			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, tc.reaches, sink.called)
			if tc.contains != "" {
				require.Contains(t, rr.Body.String(), tc.contains)
			}
		})
	}
}

func TestJSONBodyRestoresBufferedBody(t *testing.T) {
	sink := &bodySink{}
	rr := httptest.NewRecorder()
	JSONBody{Max: 64}.Middleware(sink).ServeHTTP(rr, postJSON(`{"discount":"10"}`, -1, "application/json"))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, `{"discount":"10"}`, sink.body)
	require.Equal(t, int64(len(`{"discount":"10"}`)), sink.length)
}

func TestJSONBodyDefaultLimit(t *testing.T) {
	require.Equal(t, int64(DefaultJSONBodyMaxBytes), JSONBody{}.limit())
}
