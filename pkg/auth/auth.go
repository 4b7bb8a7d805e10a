package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rajweepmondal/url-shortener/internal/models"
)

// AuthManager combines JWT and API key authentication
type AuthManager struct {
	jwtManager    *JWTManager
	apiKeyManager *APIKeyManager
}

// AuthContext contains authentication information
type AuthContext struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	AuthType    string   `json:"auth_type"` // "jwt" or "api_key"
	IsAdmin     bool     `json:"is_admin"`

	Tier models.UserTier `json:"tier"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	JWTDuration    time.Duration `envconfig:"JWT_DURATION" default:"24h"`
	JWTIssuer      string        `envconfig:"JWT_ISSUER" default:"url-shortener"`
	APIKeyRequired bool          `envconfig:"API_KEY_REQUIRED" default:"true"`
	AdminAPIKey    string        `envconfig:"ADMIN_API_KEY"`
	EnableJWT      bool          `envconfig:"ENABLE_JWT" default:"true"`
	EnableAPIKey   bool          `envconfig:"ENABLE_API_KEY" default:"true"`
}

// NewAuthManager creates a new authentication manager
func NewAuthManager(config AuthConfig) (*AuthManager, error) {
	var jwtManager *JWTManager
	var apiKeyManager *APIKeyManager

	if config.EnableJWT {
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT secret is required when JWT is enabled")
		}
		jwtManager = NewJWTManager(config.JWTSecret, config.JWTDuration, config.JWTIssuer)
	}

	if config.EnableAPIKey {
		apiKeyManager = NewAPIKeyManager()

		if config.AdminAPIKey != "" {
			hashedKey := hashAPIKey(config.AdminAPIKey)
			adminKeyInfo := &APIKeyInfo{
				ID:          "admin",
				Name:        "Admin API Key",
				HashedKey:   hashedKey,
				Permissions: []string{APIKeyPermissions.AdminAccess},
				CreatedAt:   time.Now(),
				IsActive:    true,
				UserID:      "admin",
				Tier:        models.TierEnterprise,
			}
			apiKeyManager.keys[hashedKey] = adminKeyInfo
		}
	}

	return &AuthManager{
		jwtManager:    jwtManager,
		apiKeyManager: apiKeyManager,
	}, nil
}

// AuthenticateToken authenticates a token (JWT or API key) and returns auth context
func (am *AuthManager) AuthenticateToken(token string) (*AuthContext, error) {
	// Try API key authentication first (for both usk_ prefixed keys and admin keys)
	if am.apiKeyManager != nil {
		if strings.HasPrefix(token, "usk_") {
			return am.authenticateAPIKey(token)
		}

		if hashedToken := hashAPIKey(token); am.apiKeyManager.keys[hashedToken] != nil {
			return am.authenticateAPIKey(token)
		}
	}

	// Try JWT authentication
	if am.jwtManager != nil {
		return am.authenticateJWT(token)
	}

	return nil, fmt.Errorf("no authentication methods enabled")
}

// authenticateJWT authenticates a JWT token
func (am *AuthManager) authenticateJWT(tokenString string) (*AuthContext, error) {
	claims, err := am.jwtManager.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("JWT validation failed: %w", err)
	}

	return &AuthContext{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Roles:    claims.Roles,
		AuthType: "jwt",
		IsAdmin:  claims.IsAdmin(),
		Tier:     claims.Tier,
	}, nil
}

// authenticateAPIKey authenticates an API key
func (am *AuthManager) authenticateAPIKey(apiKey string) (*AuthContext, error) {
	keyInfo, err := am.apiKeyManager.ValidateAPIKey(apiKey)
	if err != nil {
		return nil, fmt.Errorf("API key validation failed: %w", err)
	}

	return &AuthContext{
		UserID:      keyInfo.UserID,
		Username:    keyInfo.Name,
		Permissions: keyInfo.Permissions,
		AuthType:    "api_key",
		IsAdmin:     keyInfo.HasPermission(APIKeyPermissions.AdminAccess),
		Tier:        keyInfo.Tier,
	}, nil
}

// GenerateJWT generates a new JWT token
func (am *AuthManager) GenerateJWT(userID, username, email string, roles []string, tier models.UserTier) (string, error) {
	if am.jwtManager == nil {
		return "", fmt.Errorf("JWT authentication is not enabled")
	}
	return am.jwtManager.GenerateToken(userID, username, email, roles, tier)
}

// GenerateAPIKey generates a new API key
func (am *AuthManager) GenerateAPIKey(name, userID string, permissions []string, tier models.UserTier, expiresAt *time.Time) (string, *APIKeyInfo, error) {
	if am.apiKeyManager == nil {
		return "", nil, fmt.Errorf("API key authentication is not enabled")
	}
	return am.apiKeyManager.GenerateAPIKey(name, userID, permissions, tier, expiresAt)
}

// RequirePermission checks if the auth context has a specific permission
func (ac *AuthContext) RequirePermission(permission string) error {
	if ac.IsAdmin {
		return nil // Admins have all permissions
	}

	for _, p := range ac.Permissions {
		if p == permission {
			return nil
		}
	}

	return fmt.Errorf("insufficient permissions: required %s", permission)
}

// RequireRole checks if the auth context has a specific role
func (ac *AuthContext) RequireRole(role string) error {
	if ac.IsAdmin && role != "super_admin" {
		return nil // Admins have most roles except super_admin
	}

	for _, r := range ac.Roles {
		if r == role {
			return nil
		}
	}

	return fmt.Errorf("insufficient role: required %s", role)
}

// Principal is the caller identity threaded through request context: either
// Anonymous or an authenticated User. It is the only thing the service and
// ownership layers reason about — they never see raw tokens or headers.
type Principal struct {
	authenticated bool
	userID        string
	tier          models.UserTier
	isAdmin       bool
}

// AnonymousPrincipal is the zero-value, unauthenticated caller.
var AnonymousPrincipal = Principal{}

// NewUserPrincipal builds an authenticated Principal for a resolved user.
func NewUserPrincipal(userID string, tier models.UserTier, isAdmin bool) Principal {
	return Principal{authenticated: true, userID: userID, tier: tier, isAdmin: isAdmin}
}

// PrincipalFromAuthContext adapts a resolved AuthContext into a Principal.
func PrincipalFromAuthContext(ac *AuthContext) Principal {
	if ac == nil {
		return AnonymousPrincipal
	}
	return NewUserPrincipal(ac.UserID, ac.Tier, ac.IsAdmin)
}

// IsAnonymous reports whether the caller is unauthenticated.
func (p Principal) IsAnonymous() bool {
	return !p.authenticated
}

// UserID returns the caller's user ID, or "" if anonymous.
func (p Principal) UserID() string {
	return p.userID
}

// Tier returns the caller's tier. Anonymous callers carry the zero tier.
func (p Principal) Tier() models.UserTier {
	return p.tier
}

// IsAdmin reports whether the caller has administrative privileges.
func (p Principal) IsAdmin() bool {
	return p.authenticated && p.isAdmin
}

// OwnerIDPtr returns a pointer suitable for models.URLMapping.OwnerID: nil
// for anonymous callers, &userID otherwise.
func (p Principal) OwnerIDPtr() *string {
	if p.IsAnonymous() {
		return nil
	}
	id := p.userID
	return &id
}

// RequireAuth rejects an anonymous Principal.
func RequireAuth(p Principal) *models.AppError {
	if p.IsAnonymous() {
		return models.ErrUnauthenticated("authentication is required for this operation")
	}
	return nil
}

// RequireTier rejects a Principal whose tier falls below min.
func RequireTier(p Principal, min models.UserTier) *models.AppError {
	if p.IsAdmin() {
		return nil
	}
	if !p.Tier().AtLeast(min) {
		return models.ErrInsufficientTier(min)
	}
	return nil
}

// OwnershipChecker resolves the owner of a short code without going through
// the cache: mutation paths must see a read-your-writes-consistent owner.
type OwnershipChecker interface {
	OwnerOf(ctx context.Context, shortCode string) (ownerID *string, err error)
}

// RequireOwnership rejects a Principal that is neither the mapping's owner
// nor an admin. Anonymous mappings can never be mutated through this path:
// only the admin/sweeper path may touch them.
func RequireOwnership(ctx context.Context, checker OwnershipChecker, p Principal, shortCode string) *models.AppError {
	if p.IsAdmin() {
		return nil
	}

	ownerID, err := checker.OwnerOf(ctx, shortCode)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return models.ErrMappingNotFound
		}
		return models.ErrInternalWithCause("failed to resolve mapping owner", err)
	}

	if ownerID == nil {
		return models.ErrForbidden("anonymous mappings cannot be modified")
	}

	if p.IsAnonymous() || p.UserID() != *ownerID {
		return models.ErrForbidden("you do not own this short url")
	}

	return nil
}

// Context keys for storing auth information
type contextKey string

const (
	AuthContextKey contextKey = "auth_context"
	principalKey   contextKey = "principal"
)

// WithAuthContext adds auth context to the context
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, authCtx)
}

// FromContext extracts auth context from the context
func FromContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return authCtx, ok
}

// WithPrincipal attaches a resolved Principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the Principal from the context, defaulting
// to Anonymous when none was attached.
func PrincipalFromContext(ctx context.Context) Principal {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok {
		return AnonymousPrincipal
	}
	return p
}
