// Package middleware provides the gin middleware chain: bearer-token
// authentication, role gating, request IDs, request logging, and a
// global rate limiter.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantarc/ordergate/internal/auth"
)

const (
	// ContextClaims is the gin context key for the verified identity.
	ContextClaims = "auth_claims"
	// HeaderRequestID carries the per-request correlation header.
	HeaderRequestID = "X-Request-ID"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// Auth verifies the Authorization bearer token and stores the claims in
// the request context. Missing or invalid tokens abort with 401.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortError(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "authorization header required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortError(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "authorization header must be a bearer token")
			return
		}

		claims, err := verifier.VerifyToken(parts[1])
		if err != nil {
			abortError(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "invalid or expired token")
			return
		}

		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireRole admits only identities at or above the required level.
// Must run after Auth.
func RequireRole(required auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			abortError(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "authentication required")
			return
		}
		if !claims.Role.AtLeast(required) {
			abortError(c, http.StatusForbidden, "AUTHORIZATION_FAILED", "insufficient role for this operation")
			return
		}
		c.Next()
	}
}

// ClaimsFrom extracts the verified identity set by Auth, or nil.
func ClaimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// RequestID attaches a request ID, honouring one supplied by the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger logs one line per request after completion.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

// RateLimit applies a global token-bucket limiter; saturation yields 429.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			abortError(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		c.Next()
	}
}

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"code": code, "message": message},
	})
}
