package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSMiddleware opens the functions group to the browser extension. Any
// OPTIONS request is answered with a plain "ok" before auth and rate limits
// see it.
type CORSMiddleware struct {
	cors func(http.Handler) http.Handler
}

func NewCORSMiddleware() *CORSMiddleware {
	return &CORSMiddleware{
		cors: cors.Handler(cors.Options{
			AllowedOrigins:     []string{"*"},
			AllowedMethods:     []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders:     []string{"authorization", "x-client-info", "apikey", "content-type"},
			OptionsPassthrough: true,
		}),
	}
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return m.cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
			return
		}
		next.ServeHTTP(w, r)
	}))
}
