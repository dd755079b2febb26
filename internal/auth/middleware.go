// Package auth provides JWT bearer authentication middleware and the admin
// gate protecting the analytics dashboards.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the middleware.
const (
	claimsContextKey = "claims"
	userContextKey   = "user_id"
)

// RoleAdmin marks tokens allowed to read aggregate analytics.
const RoleAdmin = "admin"

var errInvalidSigningMethod = errors.New("invalid signing method")

// Claims represents the JWT claims issued by the Tripvar auth service.
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Middleware validates the Authorization bearer token and stores the claims
// and user ID in the request context.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errInvalidSigningMethod
			}
			return []byte(secret), nil
		})
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(claimsContextKey, claims)
		c.Set(userContextKey, claims.Sub)
		c.Next()
	}
}

// RequireAdmin rejects requests whose token does not carry the admin role.
// It must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok || claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
				"code":  "FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

// GetClaims extracts the validated claims from the gin context.
func GetClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(claimsContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// UserID returns the authenticated user ID, or empty for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(userContextKey)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": msg,
		"code":  "UNAUTHORIZED",
	})
}
