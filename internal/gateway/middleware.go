package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"
)

// rateLimitMiddleware throttles the HTTP read surface. This is separate
// from the command policy's rate windows: it protects the gateway
// process, not the page.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(100), 200)
	return func(c *gin.Context) {
		// Websocket upgrades are long-lived; only meter plain HTTP.
		if c.IsWebsocket() {
			c.Next()
			return
		}
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	return w.gz.Write(data)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.gz.Write([]byte(s))
}

// gzipMiddleware compresses read-surface responses for clients that
// accept it. Candidate dumps for busy pages are large and repetitive.
func gzipMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.IsWebsocket() ||
			!strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") ||
			c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		gz := gzip.NewWriter(c.Writer)
		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{ResponseWriter: c.Writer, gz: gz}
		defer func() {
			gz.Close()
			c.Header("Content-Length", "")
		}()
		c.Next()
	}
}
