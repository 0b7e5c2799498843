package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/auth"
	"github.com/iho/trustledger/internal/infrastructure/metrics"
)

const (
	// ActorIDHeader and ActorRoleHeader identify the caller when JWT auth is disabled.
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"
)

// AuthMiddleware creates an authentication middleware. Every request must
// carry a Bearer token; its claims become the request's domain.Actor.
func AuthMiddleware(jwtManager *auth.JWTManager, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				authFailure(w, m, "missing_header", "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				authFailure(w, m, "bad_format", "invalid authorization header format")
				return
			}

			claims, err := jwtManager.Verify(parts[1])
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, auth.ErrExpiredToken) {
					reason = "expired_token"
				}
				authFailure(w, m, reason, "invalid or expired token")
				return
			}

			ctx := domain.ContextWithActor(r.Context(), claims.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HeaderActor trusts the X-Actor-ID and X-Actor-Role headers. It is only
// mounted when JWT auth is disabled. Requests without the headers continue
// anonymously and fail at the ledger if they attempt a write.
func HeaderActor(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(ActorIDHeader)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			actor := &domain.Actor{ID: id, Role: domain.Role(strings.ToLower(r.Header.Get(ActorRoleHeader)))}
			if err := actor.Validate(); err != nil {
				authFailure(w, m, "invalid_role", "unknown actor role")
				return
			}

			next.ServeHTTP(w, r.WithContext(domain.ContextWithActor(r.Context(), actor)))
		})
	}
}

func authFailure(w http.ResponseWriter, m *metrics.Metrics, reason, message string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(reason).Inc()
	}
	http.Error(w, message, http.StatusUnauthorized)
}
