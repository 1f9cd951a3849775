package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/observability"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

// Context keys set by authMiddleware
const (
	subjectContextKey = "subject"
	roleContextKey    = observability.UserRoleContextKey
)

// RoleGuard provides helper functions for role-based access control in handlers
type RoleGuard struct{}

// NewRoleGuard creates a new role guard instance
func NewRoleGuard() *RoleGuard {
	return &RoleGuard{}
}

// GetCurrentCaller extracts the authenticated caller from context
func (rg *RoleGuard) GetCurrentCaller(c *gin.Context) (subject, role string, exists bool) {
	subject = c.GetString(subjectContextKey)
	role = c.GetString(roleContextKey)
	if subject == "" || role == "" {
		return "", "", false
	}
	return subject, role, true
}

// RequireRole lets the request through when the caller has one of roles
func (rg *RoleGuard) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, role, exists := rg.GetCurrentCaller(c)
		if !exists {
			logger.Warn("Access denied - caller not authenticated",
				logger.String("required_roles", strings.Join(roles, ",")),
				logger.String("ip", c.ClientIP()),
			)
			xresponse.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		logger.Warn("Access denied - insufficient role",
			logger.String("subject", subject),
			logger.String("user_role", role),
			logger.String("required_roles", strings.Join(roles, ",")),
			logger.String("ip", c.ClientIP()),
		)
		xresponse.Forbidden(c, "Insufficient permissions")
		c.Abort()
	}
}
