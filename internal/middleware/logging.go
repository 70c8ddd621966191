package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware 日志中间件
// 认证通过后记录归属用户，方便按用户追查一次对话的全部请求
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		owner := c.GetString("user_id")
		if owner == "" {
			owner = "-"
		}

		log.Printf("[%s] %s %s | Status: %d | Owner: %s | Latency: %v",
			c.Request.Method,
			path,
			query,
			c.Writer.Status(),
			owner,
			latency,
		)
	}
}
