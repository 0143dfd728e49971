// Package api assembles the HTTP surface (SPEC_FULL.md §6): middleware
// chain, role-tiered subrouters and resource handlers, wired against
// internal/commands.Service. Adapted from the teacher's internal/api
// package (router.go plus its handlers/* subpackages).
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/surpluscoord/control-plane/internal/api/middleware"
	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/commands"
	"github.com/surpluscoord/control-plane/internal/domain"
)

// writeJSON writes v as a 200 OK (or the given status) JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates err into the flat apierr wire shape, wrapping
// anything not already an *apierr.Error as an internal error per the
// propagation policy (SPEC_FULL.md §7: never leak internal messages).
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		apiErr = apierr.InternalError("an internal error occurred").WithRequestID(middleware.GetRequestID(r.Context()))
	}
	apierr.WriteError(w, apiErr)
}

// decodeJSON decodes the request body into dst, translating a malformed
// body into a VALIDATION_ERROR rather than a raw decode error.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apierr.ValidationError("request body is required")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierr.ValidationError("malformed JSON request body")
	}
	return nil
}

// actorFromRequest builds a commands.Actor from the AuthenticatedUser
// AuthMiddleware attached to the request context, translating its absence
// into an authentication error (envelope step 1).
func actorFromRequest(r *http.Request) (commands.Actor, error) {
	user, ok := middleware.GetAuthenticatedUser(r.Context())
	if !ok || user == nil {
		return commands.Actor{}, apierr.AuthenticationError("no authenticated actor").WithRequestID(middleware.GetRequestID(r.Context()))
	}
	return commands.Actor{
		UserID:    user.ID,
		Email:     user.Email,
		Roles:     user.Roles,
		RequestID: middleware.GetRequestID(r.Context()),
	}, nil
}

// queryInt parses an integer query parameter, returning def on absence or
// parse failure.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// queryTime parses an RFC3339 query parameter, returning the zero time on
// absence or parse failure.
func queryTime(r *http.Request, key string) time.Time {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func queryStatus(r *http.Request, key string) domain.Status {
	return domain.Status(r.URL.Query().Get(key))
}
