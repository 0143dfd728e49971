package middleware

import (
	"net/http"

	"github.com/surpluscoord/control-plane/internal/apierr"
)

const maxRequestBodyBytes = 1 << 20 // 1MB

// ValidationMiddleware rejects requests with the wrong content type or an
// oversized body before they reach a handler. Struct-tag validation of the
// decoded payload itself happens in internal/commands.
func ValidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodDelete || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
			apierr.WriteError(w, apierr.ValidationError("Content-Type must be application/json").WithRequestID(GetRequestID(r.Context())))
			return
		}

		if r.ContentLength > maxRequestBodyBytes {
			apierr.WriteError(w, apierr.ValidationError("request body too large (max 1MB)").WithRequestID(GetRequestID(r.Context())))
			return
		}

		next.ServeHTTP(w, r)
	})
}
