package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware adds security headers to responses
// These headers only affect browser-based access (landing page and API
// calls made from it); non-browser clients ignore them
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// X-Content-Type-Options: Prevents MIME type sniffing
		c.Header("X-Content-Type-Options", "nosniff")

		// X-Frame-Options: Prevents clickjacking attacks
		// DENY = page cannot be displayed in a frame
		c.Header("X-Frame-Options", "DENY")

		// X-XSS-Protection: Enables browser's XSS filter
		c.Header("X-XSS-Protection", "1; mode=block")

		// Referrer-Policy: Controls how much referrer info is sent
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}
