package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/click2call/relay-server-go/internal/audit"
	apperrors "github.com/click2call/relay-server-go/internal/errors"
	"github.com/click2call/relay-server-go/internal/httputil"
	"github.com/click2call/relay-server-go/internal/util"
)

// APIKeyMiddleware admits requests that present the shared secret either as
// a bearer token or in the apikey header. An empty key disables the check.
type APIKeyMiddleware struct {
	apiKey string
}

func NewAPIKeyMiddleware(apiKey string) *APIKeyMiddleware {
	if apiKey == "" {
		log.Warn().Msg("API key check disabled: API_KEY is empty")
	}
	return &APIKeyMiddleware{apiKey: apiKey}
}

func (m *APIKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if !m.authorized(r) {
			audit.LogFromRequest(r, audit.Event{
				Type: audit.EventAuthFailure,
				Details: map[string]interface{}{
					"path":     r.URL.Path,
					"keyGiven": r.Header.Get("Authorization") != "" || r.Header.Get("apikey") != "",
				},
			})
			httputil.WriteError(w, apperrors.Unauthorized("Invalid or missing API key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authorized accepts a matching bearer token or a matching apikey header.
// Browsers may attach an unrelated Authorization header, so a bearer that
// does not match falls back to apikey.
func (m *APIKeyMiddleware) authorized(r *http.Request) bool {
	if bearer := bearerToken(r); bearer != "" && util.ConstantTimeEqual(bearer, m.apiKey) {
		return true
	}
	key := strings.TrimSpace(r.Header.Get("apikey"))
	return key != "" && util.ConstantTimeEqual(key, m.apiKey)
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}
