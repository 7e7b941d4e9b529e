package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kitarena/kitarena/internal/platform/httpx"
	"github.com/kitarena/kitarena/internal/shared"
)

// Gate wires identity resolution into HTTP handlers.
type Gate struct {
	Service *Service
	Logger  *slog.Logger
}

// Resolve puts the identity behind a bearer token into the request context.
// Requests without a token pass through anonymously; guest checkout depends
// on that.
func (g Gate) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := g.Service.Resolve(r.Context(), token)
		if err != nil {
			if g.Logger != nil {
				g.Logger.Warn("token resolution failed", slog.String("path", r.URL.Path))
			}
			httpx.Error(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// RequireRole ensures the current identity holds one of the given roles.
func (g Gate) RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Error(w, http.StatusForbidden, httpx.CodeForbidden, "insufficient role")
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
