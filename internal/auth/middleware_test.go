package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripvar/search-analytics/internal/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, sub, role string) string {
	t.Helper()

	claims := auth.Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authRouter(adminOnly bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", auth.Middleware(testSecret))
	if adminOnly {
		group.Use(auth.RequireAdmin())
	}
	group.GET("whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": auth.UserID(c)})
	})
	return r
}

func doRequest(r *gin.Engine, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ValidToken(t *testing.T) {
	r := authRouter(false)
	w := doRequest(r, signToken(t, testSecret, "user-1", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestMiddleware_MissingHeader(t *testing.T) {
	r := authRouter(false)
	w := doRequest(r, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_WrongSecret(t *testing.T) {
	r := authRouter(false)
	w := doRequest(r, signToken(t, "other-secret", "user-1", ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin_AllowsAdmin(t *testing.T) {
	r := authRouter(true)
	w := doRequest(r, signToken(t, testSecret, "admin-1", auth.RoleAdmin))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_RejectsNonAdmin(t *testing.T) {
	r := authRouter(true)
	w := doRequest(r, signToken(t, testSecret, "user-1", ""))

	assert.Equal(t, http.StatusForbidden, w.Code)
}
