package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger middleware logs HTTP requests
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		// Subject is set by Auth when a token was presented
		subject := c.GetString(SubjectKey)
		if subject == "" {
			subject = "-"
		}

		log.Printf("[%s] %s %s %s %d %v %s",
			c.Request.Method,
			path,
			c.ClientIP(),
			subject,
			c.Writer.Status(),
			time.Since(start),
			c.Errors.String(),
		)
	}
}
