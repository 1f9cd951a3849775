package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/txqueue/internal/domain"
	authpkg "github.com/alfanzaky/txqueue/pkg/auth"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/metrics"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

// SetupRoutes configures all API routes
func SetupRoutes(router gin.IRouter, transactionHandler *TransactionHandler, authService domain.AuthService) {
	guard := NewRoleGuard()
	authHandler := NewAuthHandler(authService)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(authService))
	{
		v1.POST("/transactions",
			guard.RequireRole(domain.RoleProducer, domain.RoleAdmin),
			transactionHandler.EnqueueTransaction,
		)
		v1.GET("/queue",
			guard.RequireRole(domain.RoleAdmin),
			transactionHandler.GetQueueStats,
		)
		v1.POST("/tokens",
			guard.RequireRole(domain.RoleAdmin),
			authHandler.IssueToken,
		)
	}

	logger.Info("API routes configured successfully")
}

// authMiddleware validates the bearer token and sets caller context
func authMiddleware(authService domain.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			xresponse.InternalServerError(c, "Auth service not available")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			metrics.RecordAuthAttempt("bearer", "missing")
			xresponse.Unauthorized(c, "Authorization header with Bearer token required")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := authService.ValidateToken(token)
		if err != nil {
			metrics.RecordAuthAttempt("bearer", "failed")
			switch {
			case errors.Is(err, authpkg.ErrExpiredToken):
				xresponse.Unauthorized(c, "Token expired")
			case errors.Is(err, authpkg.ErrInvalidToken), errors.Is(err, authpkg.ErrInvalidRole):
				xresponse.Unauthorized(c, "Invalid token")
			default:
				xresponse.InternalServerError(c, "Failed to validate token")
			}
			c.Abort()
			return
		}

		subject := strings.TrimSpace(claims.Subject)
		if subject == "" {
			metrics.RecordAuthAttempt("bearer", "failed")
			xresponse.Unauthorized(c, "Invalid token payload")
			c.Abort()
			return
		}

		metrics.RecordAuthAttempt("bearer", "success")
		c.Set(subjectContextKey, subject)
		c.Set(roleContextKey, claims.Role)

		logger.Debug("Caller authenticated via middleware",
			logger.String("subject", subject),
			logger.String("role", claims.Role),
			logger.Duration("token_ttl", claims.ExpiresAt.Sub(claims.IssuedAt)),
		)

		c.Next()
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Trace-ID, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RecoveryMiddleware handles panics
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			logger.String("error", fmt.Sprintf("%v", recovered)),
			logger.String("path", c.Request.URL.Path),
			logger.String("method", c.Request.Method),
		)

		xresponse.InternalServerError(c, "Internal server error")
		c.Abort()
	})
}
