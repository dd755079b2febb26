package ratelimit

import "github.com/gin-gonic/gin"

// ContextUserKey is the gin context key under which the auth middleware
// stores the authenticated user ID.
const ContextUserKey = "user_id"

// apiKeyHeader identifies service-to-service callers.
const apiKeyHeader = "X-API-Key"

// KeyFunc derives the identity a limit is tracked against.
type KeyFunc func(c *gin.Context) string

// ByIP keys on the client IP address.
func ByIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByUser keys on the authenticated user ID, falling back to the client IP
// for anonymous requests.
func ByUser(c *gin.Context) string {
	if userID := c.GetString(ContextUserKey); userID != "" {
		return "user:" + userID
	}
	return ByIP(c)
}

// ByIPEndpoint keys on the composite of client IP and request path, so one
// endpoint's burst cannot starve another.
func ByIPEndpoint(c *gin.Context) string {
	return c.ClientIP() + ":" + c.FullPath()
}

// ByAPIKey keys on the X-API-Key header, falling back to the client IP.
func ByAPIKey(c *gin.Context) string {
	if key := c.GetHeader(apiKeyHeader); key != "" {
		return "apikey:" + key
	}
	return ByIP(c)
}
