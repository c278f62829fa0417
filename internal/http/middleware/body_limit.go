package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitBody caps request bodies at max bytes. Non-positive max disables it.
func LimitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
