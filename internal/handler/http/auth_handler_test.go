package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajweepmondal/url-shortener/internal/models"
	"github.com/rajweepmondal/url-shortener/pkg/auth"
)

func setupTestAuthHandler(t *testing.T) (*AuthHandler, *auth.AuthManager) {
	config := auth.AuthConfig{
		JWTSecret:    "test-secret-key-for-handler-testing",
		JWTDuration:  time.Hour,
		JWTIssuer:    "test-issuer",
		EnableJWT:    true,
		EnableAPIKey: true,
		AdminAPIKey:  "admin-key-123",
	}

	authManager, err := auth.NewAuthManager(config)
	require.NoError(t, err)

	logger := zap.NewNop()
	handler := NewAuthHandler(authManager, logger)

	return handler, authManager
}

func TestAuthHandler_CreateAPIKey(t *testing.T) {
	handler, _ := setupTestAuthHandler(t)

	tests := []struct {
		name           string
		principal      auth.Principal
		requestBody    interface{}
		expectedStatus int
		expectAPIKey   bool
	}{
		{
			name:      "admin creates API key",
			principal: auth.NewUserPrincipal("admin-123", models.TierEnterprise, true),
			requestBody: CreateAPIKeyRequest{
				Name:        "Test API Key",
				Permissions: []string{auth.APIKeyPermissions.ReadURLs, auth.APIKeyPermissions.WriteURLs},
			},
			expectedStatus: http.StatusCreated,
			expectAPIKey:   true,
		},
		{
			name:      "admin creates API key with expiration",
			principal: auth.NewUserPrincipal("admin-123", models.TierEnterprise, true),
			requestBody: CreateAPIKeyRequest{
				Name:        "Expiring Key",
				Permissions: []string{auth.APIKeyPermissions.ReadURLs},
				ExpiresAt:   timePtr(time.Now().Add(24 * time.Hour)),
			},
			expectedStatus: http.StatusCreated,
			expectAPIKey:   true,
		},
		{
			name:      "admin creates API key with default permissions",
			principal: auth.NewUserPrincipal("admin-123", models.TierEnterprise, true),
			requestBody: CreateAPIKeyRequest{
				Name: "Default Perms Key",
			},
			expectedStatus: http.StatusCreated,
			expectAPIKey:   true,
		},
		{
			name:      "non-admin user forbidden",
			principal: auth.NewUserPrincipal("user-456", models.TierStandard, false),
			requestBody: CreateAPIKeyRequest{
				Name:        "User Key",
				Permissions: []string{auth.APIKeyPermissions.ReadURLs},
			},
			expectedStatus: http.StatusForbidden,
			expectAPIKey:   false,
		},
		{
			name:      "anonymous forbidden",
			principal: auth.AnonymousPrincipal,
			requestBody: CreateAPIKeyRequest{
				Name:        "No Auth Key",
				Permissions: []string{auth.APIKeyPermissions.ReadURLs},
			},
			expectedStatus: http.StatusForbidden,
			expectAPIKey:   false,
		},
		{
			name:           "invalid JSON",
			principal:      auth.NewUserPrincipal("admin-123", models.TierEnterprise, true),
			requestBody:    "invalid json",
			expectedStatus: http.StatusBadRequest,
			expectAPIKey:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			var err error

			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest("POST", "/api/v1/auth/api-keys", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(auth.WithPrincipal(req.Context(), tt.principal))

			rr := httptest.NewRecorder()
			handler.CreateAPIKey(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			if tt.expectAPIKey {
				var response CreateAPIKeyResponse
				err := json.Unmarshal(rr.Body.Bytes(), &response)
				assert.NoError(t, err)
				assert.NotEmpty(t, response.APIKey)
				assert.Contains(t, response.APIKey, "usk_")
				assert.NotNil(t, response.KeyInfo)
			}
		})
	}
}

func TestAuthHandler_ValidateToken(t *testing.T) {
	handler, authManager := setupTestAuthHandler(t)

	jwtToken, err := authManager.GenerateJWT("user-123", "testuser", "test@example.com", []string{"user"}, models.TierStandard)
	require.NoError(t, err)

	apiKey, _, err := authManager.GenerateAPIKey("Test Key", "user-456", []string{auth.APIKeyPermissions.ReadURLs}, models.TierStandard, nil)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectValid    bool
	}{
		{
			name:           "valid JWT token in header",
			authHeader:     "Bearer " + jwtToken,
			expectedStatus: http.StatusOK,
			expectValid:    true,
		},
		{
			name:           "valid API key in header",
			authHeader:     "ApiKey " + apiKey,
			expectedStatus: http.StatusOK,
			expectValid:    true,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid-token",
			expectedStatus: http.StatusUnauthorized,
			expectValid:    false,
		},
		{
			name:           "no token",
			expectedStatus: http.StatusBadRequest,
			expectValid:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/auth/validate", nil)

			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rr := httptest.NewRecorder()
			handler.ValidateToken(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			if tt.expectValid {
				var response map[string]interface{}
				err := json.Unmarshal(rr.Body.Bytes(), &response)
				assert.NoError(t, err)
				assert.True(t, response["valid"].(bool))
				assert.NotEmpty(t, response["user_id"])
			}
		})
	}
}

func TestAuthHandler_GetProfile(t *testing.T) {
	handler, _ := setupTestAuthHandler(t)

	tests := []struct {
		name           string
		hasAuthContext bool
		authContext    *auth.AuthContext
		expectedStatus int
	}{
		{
			name:           "valid auth context",
			hasAuthContext: true,
			authContext: &auth.AuthContext{
				UserID:   "user-123",
				Username: "testuser",
				Email:    "test@example.com",
				Roles:    []string{"user"},
				Tier:     models.TierStandard,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "no auth context",
			hasAuthContext: false,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/auth/profile", nil)

			if tt.hasAuthContext {
				ctx := auth.WithAuthContext(req.Context(), tt.authContext)
				req = req.WithContext(ctx)
			}

			rr := httptest.NewRecorder()
			handler.GetProfile(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			if tt.expectedStatus == http.StatusOK {
				var profile UserInfo
				err := json.Unmarshal(rr.Body.Bytes(), &profile)
				assert.NoError(t, err)
				assert.Equal(t, tt.authContext.UserID, profile.ID)
				assert.Equal(t, tt.authContext.Username, profile.Username)
				assert.Equal(t, tt.authContext.Email, profile.Email)
				assert.Equal(t, tt.authContext.Roles, profile.Roles)
			}
		})
	}
}

func TestAuthHandler_extractToken(t *testing.T) {
	handler, _ := setupTestAuthHandler(t)

	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{
			name:     "Bearer token",
			headers:  map[string]string{"Authorization": "Bearer test-token-123"},
			expected: "test-token-123",
		},
		{
			name:     "ApiKey token",
			headers:  map[string]string{"Authorization": "ApiKey test-api-key-456"},
			expected: "test-api-key-456",
		},
		{
			name:     "X-API-Key header",
			headers:  map[string]string{"X-API-Key": "x-api-key-token"},
			expected: "x-api-key-token",
		},
		{
			name:     "No token",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)

			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			token := handler.extractToken(req)
			assert.Equal(t, tt.expected, token)
		})
	}
}

// Helper function to create time pointer
func timePtr(t time.Time) *time.Time {
	return &t
}
