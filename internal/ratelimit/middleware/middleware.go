// Package middleware enforces per-IP and per-user request budgets. A failing
// store lets requests through.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"civicid/internal/ratelimit/metrics"
	"civicid/internal/ratelimit/models"
	"civicid/pkg/platform/httputil"
	"civicid/pkg/requestcontext"
)

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (models.Result, error)
}

type Middleware struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Middleware)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) { mw.metrics = m }
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retryAfter"`
}

// PerIP limits by client address. ClientMetadata must run first.
func (m *Middleware) PerIP(limit models.Limit) func(http.Handler) http.Handler {
	return m.limit("ip", limit, func(ctx context.Context) string {
		return requestcontext.ClientIP(ctx)
	})
}

// PerUser limits by authenticated user and must run after RequireAuth.
// Requests without a user fall back to the client address.
func (m *Middleware) PerUser(limit models.Limit) func(http.Handler) http.Handler {
	return m.limit("user", limit, func(ctx context.Context) string {
		if userID := requestcontext.UserID(ctx); !userID.IsNil() {
			return userID.String()
		}
		return "ip:" + requestcontext.ClientIP(ctx)
	})
}

func (m *Middleware) limit(scope string, limit models.Limit, keyOf func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !limit.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			res, err := m.store.Allow(ctx, scope+":"+keyOf(ctx), limit)
			if err != nil {
				m.metrics.IncrementStoreErrors()
				m.logger.WarnContext(ctx, "rate limit check failed, allowing request",
					"request_id", requestcontext.RequestID(ctx),
					"scope", scope,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				m.metrics.IncrementDenied(scope)
				retry := res.RetryAfter(m.now())
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests. Please try again later.",
					RetryAfter: retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
