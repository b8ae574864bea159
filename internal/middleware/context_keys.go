package middleware

import "github.com/gin-gonic/gin"

// contextKey is used for values stored in the Gin and request contexts.
// Using a custom type prevents collisions.
type contextKey string

const (
	loggerKey    = contextKey("logger")
	requestIDKey = contextKey("requestID")
)

// GetRequestIDFromContext returns the id assigned by StructuredLoggingMiddleware.
func GetRequestIDFromContext(c *gin.Context) (string, bool) {
	v, exists := c.Get(string(requestIDKey))
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
