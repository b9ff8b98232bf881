package middleware

import "github.com/gin-gonic/gin"

// NoStore marks responses as uncacheable. Reward values and anti-forgery
// tokens are per user and change on every mutation.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
