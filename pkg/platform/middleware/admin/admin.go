package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	request "storegate/pkg/platform/middleware/request"
)

const (
	tokenHeader   = "X-Admin-Token"
	actorIDHeader = "X-Admin-Actor-ID"
)

type contextKeyAdminActorID struct{}
type contextKeyAdmin struct{}

// ContextKeyAdminActorID is exported for use in handlers and tests.
var ContextKeyAdminActorID = contextKeyAdminActorID{}

// GetAdminActorID retrieves the admin actor identifier from the context.
// Returns empty string if not set or if this is not an admin request.
func GetAdminActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(ContextKeyAdminActorID).(string); ok {
		return actorID
	}
	return ""
}

// IsAdminRequest reports whether the request passed RequireAdminToken.
func IsAdminRequest(ctx context.Context) bool {
	ok, _ := ctx.Value(contextKeyAdmin{}).(bool)
	return ok
}

// RequireAdminToken guards cache maintenance endpoints with a shared token.
// An empty expected token rejects every request.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(tokenHeader)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"admin token required"}`))
				return
			}

			ctx = context.WithValue(ctx, contextKeyAdmin{}, true)
			if actorID := r.Header.Get(actorIDHeader); actorID != "" {
				ctx = context.WithValue(ctx, ContextKeyAdminActorID, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
