package http

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/pkg/auth"
)

// AuthHandler exposes token introspection and API key management. Session
// tokens themselves are minted by whatever external identity system owns
// user accounts; this service only validates what it's handed and issues
// scoped API keys on behalf of an already-authenticated admin.
type AuthHandler struct {
	authManager *auth.AuthManager
	logger      *zap.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authManager *auth.AuthManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authManager: authManager,
		logger:      logger,
	}
}

// UserInfo represents user information
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	Tier     string   `json:"tier"`
}

// CreateAPIKeyRequest represents an API key creation request
type CreateAPIKeyRequest struct {
	Name        string     `json:"name" validate:"required"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateAPIKeyResponse represents an API key creation response
type CreateAPIKeyResponse struct {
	APIKey  string           `json:"api_key"`
	KeyInfo *auth.APIKeyInfo `json:"key_info"`
}

// CreateAPIKey handles API key creation. Only admins may mint keys.
func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if !p.IsAdmin() {
		h.writeErrorResponse(w, "admin access required", http.StatusForbidden)
		return
	}

	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Permissions) == 0 {
		req.Permissions = []string{
			auth.APIKeyPermissions.ReadURLs,
			auth.APIKeyPermissions.WriteURLs,
		}
	}

	apiKey, keyInfo, err := h.authManager.GenerateAPIKey(req.Name, p.UserID(), req.Permissions, p.Tier(), req.ExpiresAt)
	if err != nil {
		h.logger.Error("failed to generate API key", zap.Error(err))
		h.writeErrorResponse(w, "failed to generate API key", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, CreateAPIKeyResponse{APIKey: apiKey, KeyInfo: keyInfo})
}

// ValidateToken handles token introspection.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	token := h.extractToken(r)
	if token == "" {
		h.writeErrorResponse(w, "token required", http.StatusBadRequest)
		return
	}

	authCtx, err := h.authManager.AuthenticateToken(token)
	if err != nil {
		h.writeErrorResponse(w, "invalid token", http.StatusUnauthorized)
		return
	}

	response := map[string]interface{}{
		"valid":       true,
		"user_id":     authCtx.UserID,
		"username":    authCtx.Username,
		"email":       authCtx.Email,
		"roles":       authCtx.Roles,
		"permissions": authCtx.Permissions,
		"auth_type":   authCtx.AuthType,
		"is_admin":    authCtx.IsAdmin,
		"tier":        authCtx.Tier,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetProfile returns the current caller's resolved identity.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return
	}

	profile := UserInfo{
		ID:       authCtx.UserID,
		Username: authCtx.Username,
		Email:    authCtx.Email,
		Roles:    authCtx.Roles,
		Tier:     string(authCtx.Tier),
	}

	h.writeJSONResponse(w, http.StatusOK, profile)
}

// extractToken extracts the authentication token from HTTP request
func (h *AuthHandler) extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			return authHeader[7:]
		}
		if len(authHeader) > 7 && authHeader[:7] == "ApiKey " {
			return authHeader[7:]
		}
		return authHeader
	}

	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}

	return ""
}

// writeJSONResponse writes a JSON response
func (h *AuthHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// writeErrorResponse writes a JSON error response
func (h *AuthHandler) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    statusCode,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}
