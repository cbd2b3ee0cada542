package middleware

import (
	"errors"
	"net/http"
	"strings"

	jwt "gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/implementation/jwt"

	"github.com/gin-gonic/gin"
)

// Key types for request context
type contextKey string

const (
	// Context keys
	UserIDContextKey      contextKey = "user_id"
	SuperAdminContextKey  contextKey = "super_admin"
	TokenIDContextKey     contextKey = "token_id"
	AccessTokenContextKey contextKey = "access_token"
)

// AuthMiddleware provides middleware functions for authentication and authorization
type AuthMiddleware struct {
	jwtService *jwt.Service
	config     Config
}

// Config holds middleware configuration
type Config struct {
	// HTTP header names for tokens
	AccessTokenHeader string

	// Cookie names for tokens (optional alternative to headers)
	AccessTokenCookie string
}

// DefaultConfig returns a default middleware configuration
func DefaultConfig() Config {
	return Config{
		AccessTokenHeader: "Authorization",
		AccessTokenCookie: "access_token",
	}
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *jwt.Service, config Config) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		config:     config,
	}
}

// extractToken gets a token from either header or cookie
func extractToken(r *http.Request, headerName, cookieName string) string {
	// Try to get from header first
	token := r.Header.Get(headerName)
	if token != "" {
		// Handle Authorization: Bearer token format
		if strings.HasPrefix(token, "Bearer ") {
			return strings.TrimPrefix(token, "Bearer ")
		}
		return token
	}

	// Try to get from cookie if header is empty and cookie name is provided
	if cookieName != "" {
		cookie, err := r.Cookie(cookieName)
		if err == nil {
			return cookie.Value
		}
	}

	return ""
}

// Authenticate middleware verifies access token
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractToken(c.Request, m.config.AccessTokenHeader, m.config.AccessTokenCookie)
		if accessToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		accessClaims, err := m.jwtService.ValidateAccessToken(accessToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid access token"})
			c.Abort()
			return
		}

		// Add user data to context
		c.Set(string(UserIDContextKey), accessClaims.UserID)
		c.Set(string(SuperAdminContextKey), accessClaims.SuperAdmin)
		c.Set(string(TokenIDContextKey), accessClaims.TokenID)
		c.Set(string(AccessTokenContextKey), accessToken)

		c.Next()
	}
}

// AuthenticateOptional validates the access token when one is present but
// lets anonymous requests through. Used on routes where a device credential
// can stand in for a user (value submissions).
func (m *AuthMiddleware) AuthenticateOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractToken(c.Request, m.config.AccessTokenHeader, m.config.AccessTokenCookie)
		if accessToken == "" {
			c.Next()
			return
		}

		accessClaims, err := m.jwtService.ValidateAccessToken(accessToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid access token"})
			c.Abort()
			return
		}

		c.Set(string(UserIDContextKey), accessClaims.UserID)
		c.Set(string(SuperAdminContextKey), accessClaims.SuperAdmin)
		c.Set(string(TokenIDContextKey), accessClaims.TokenID)
		c.Set(string(AccessTokenContextKey), accessToken)
		c.Next()
	}
}

// RequireSuperAdmin ensures the authenticated user is a super admin
func (m *AuthMiddleware) RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsSuperAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Super admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserFromGinContext retrieves user ID from Gin context
func GetUserFromGinContext(c *gin.Context) (string, error) {
	userIDVal, exists := c.Get(string(UserIDContextKey))
	if !exists {
		return "", errors.New("user not found in context")
	}

	userID, ok := userIDVal.(string)
	if !ok {
		return "", errors.New("invalid user ID format in context")
	}

	return userID, nil
}

// IsSuperAdmin reports whether the authenticated user is a super admin
func IsSuperAdmin(c *gin.Context) bool {
	v, exists := c.Get(string(SuperAdminContextKey))
	if !exists {
		return false
	}
	superAdmin, ok := v.(bool)
	return ok && superAdmin
}
