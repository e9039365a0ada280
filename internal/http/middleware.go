// Package http provides the admin HTTP server for the security core.
package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
)

// CustomLoggerMiddleware logs each request with its id, outcome and latency.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// securityHeaders are attached to every response. The chatbot frontends are
// browser-facing, so clickjacking and MIME sniffing protections stay on even
// for the admin API.
var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Permissions-Policy":        "geolocation=(), microphone=(), camera=()",
	"Content-Security-Policy":   "default-src 'self'; object-src 'none'; frame-src 'none'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
}

// SecurityHeadersMiddleware adds the standard security headers to all responses.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for header, value := range securityHeaders {
			c.Header(header, value)
		}
		c.Next()
	}
}
