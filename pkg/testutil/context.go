package testutil

import (
	"net/http"
	"time"

	"civicid/pkg/domain"
	"civicid/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, as the auth middleware would.
// Invalid IDs are ignored so tests can exercise the unauthenticated path.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := domain.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithBearer sets an Authorization header for handlers mounted behind RequireAuth.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithTime pins requestcontext.Now for the request.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
