package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/pkg/auth"
)

// AuthMiddleware resolves an inbound credential into a auth.Principal and
// attaches it to the request context. Every URL operation is reachable
// anonymously; ownership and tier checks happen downstream in the service
// layer via auth.RequireAuth/RequireOwnership/RequireTier, not here.
type AuthMiddleware struct {
	authManager *auth.AuthManager
	logger      *zap.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authManager *auth.AuthManager, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authManager: authManager,
		logger:      logger,
	}
}

// GetAuthManager returns the auth manager instance
func (am *AuthMiddleware) GetAuthManager() *auth.AuthManager {
	return am.authManager
}

// HTTPAuthMiddleware resolves the caller's Principal for every request. A
// missing or invalid credential degrades to Anonymous rather than
// rejecting the request — rejection is the service layer's job.
func (am *AuthMiddleware) HTTPAuthMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := am.extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), auth.AnonymousPrincipal)))
				return
			}

			authCtx, err := am.authManager.AuthenticateToken(token)
			if err != nil {
				am.logger.Debug("credential present but invalid, treating as anonymous",
					zap.Error(err), zap.String("path", r.URL.Path))
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), auth.AnonymousPrincipal)))
				return
			}

			p := auth.PrincipalFromAuthContext(authCtx)
			ctx := auth.WithAuthContext(r.Context(), authCtx)
			ctx = auth.WithPrincipal(ctx, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects any request whose resolved Principal is not an
// admin. The router does not currently wrap any route with it.
func (am *AuthMiddleware) RequireAdmin() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFromContext(r.Context())
			if !p.IsAdmin() {
				am.writeErrorResponse(w, "admin access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the authentication token from HTTP request
func (am *AuthMiddleware) extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		if strings.HasPrefix(authHeader, "ApiKey ") {
			return strings.TrimPrefix(authHeader, "ApiKey ")
		}
		return authHeader
	}

	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}

	return ""
}

// writeErrorResponse writes a JSON error response
func (am *AuthMiddleware) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    statusCode,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	json.NewEncoder(w).Encode(response)
}
