package security

import (
	"net/http"
	"strconv"
	"strings"
)

var defaultNoStore = []string{"/api/v1/admin", "/api/v1/quotes"}

// Headers adds browser hardening headers. The API only serves JSON and
// spreadsheet downloads, so the CSP forbids everything.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// NoStore lists path prefixes whose responses must not be cached: admin
	// data and quote sessions. Nil means defaultNoStore.
	NoStore []string
}

// Middleware implements the chi middleware signature.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	noStore := h.NoStore
	if noStore == nil {
		noStore = defaultNoStore
	}
	hsts := ""
	if h.EnableHSTS {
		maxAge := h.HSTSMaxAge
		if maxAge <= 0 {
			maxAge = 365 * 24 * 60 * 60
		}
		hsts = "max-age=" + strconv.Itoa(maxAge)
		if h.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		out.Set("X-Content-Type-Options", "nosniff")
		out.Set("X-Frame-Options", "DENY")
		out.Set("Referrer-Policy", "no-referrer")
		out.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		for _, prefix := range noStore {
			if strings.HasPrefix(r.URL.Path, prefix) {
				out.Set("Cache-Control", "no-store")
				break
			}
		}
		if hsts != "" && isHTTPS(r) {
			out.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// isHTTPS also trusts X-Forwarded-Proto: production runs behind a TLS
// terminating proxy.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
