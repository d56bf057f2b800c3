package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONBodyLimit bounds every JSON request body.
const JSONBodyLimit = 1 << 20

// MaxBodySize returns middleware that limits the request body size.
// Reads past the limit fail, and handlers surface that as a validation
// or document-size error.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
