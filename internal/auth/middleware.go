package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pcquote-api/internal/common"
)

// Realm is advertised in WWW-Authenticate challenges.
const Realm = "pcquote-admin"

// Middleware guards admin routes.
type Middleware struct {
	Service *Service
}

// RequireAdmin admits requests carrying a valid admin bearer token, with the
// session on the context and the admin name on the request logger. Anything
// else gets a 401 with a Bearer challenge.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service == nil {
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "auth service not configured", nil)
			return
		}
		token, scheme := bearerToken(r)
		session, err := m.Service.ParseToken(token)
		if err != nil {
			challenge(w, token != "", scheme)
			var appErr *common.AppError
			if !errors.As(err, &appErr) {
				appErr = common.NewAppError(CodeUnauthorized, "missing or invalid token", http.StatusUnauthorized, err)
			}
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("admin_token_rejected")
			common.JSONError(w, http.StatusUnauthorized, appErr.Code, appErr.Message, nil)
			return
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("admin", session.Username)
		})
		next.ServeHTTP(w, r.WithContext(common.WithSession(r.Context(), session)))
	})
}

// bearerToken returns the credential of a Bearer Authorization header and
// whether another scheme was used instead.
func bearerToken(r *http.Request) (token string, otherScheme bool) {
	scheme, credential, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	switch {
	case !ok && scheme == "":
		return "", false
	case !strings.EqualFold(scheme, "bearer"):
		return "", true
	default:
		return strings.TrimSpace(credential), false
	}
}

func challenge(w http.ResponseWriter, presented, otherScheme bool) {
	value := `Bearer realm="` + Realm + `"`
	switch {
	case presented:
		value += `, error="invalid_token"`
	case otherScheme:
		value += `, error="invalid_request"`
	}
	w.Header().Set("WWW-Authenticate", value)
}
