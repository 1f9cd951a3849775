package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
	"github.com/alfanzaky/txqueue/pkg/xresponse"
)

// AuthHandler issues access tokens to producer services
type AuthHandler struct {
	authService domain.AuthService
	roleGuard   *RoleGuard
}

func NewAuthHandler(authService domain.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService, roleGuard: NewRoleGuard()}
}

type issueTokenRequest struct {
	Subject string `json:"subject" binding:"required"`
	Role    string `json:"role"`
}

// IssueToken creates a token for another service. Only admins may call it.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xresponse.BadRequest(c, "Invalid payload: "+err.Error())
		return
	}

	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleProducer
	}
	if !domain.IsValidRole(role) {
		xresponse.BadRequest(c, "Unknown role")
		return
	}

	token, err := h.authService.GenerateAccessToken(strings.TrimSpace(req.Subject), role)
	if err != nil {
		logger.Error("Failed to generate token", logger.ErrorField(err))
		xresponse.InternalServerError(c, "Failed to generate token")
		return
	}

	issuer, _, _ := h.roleGuard.GetCurrentCaller(c)
	logger.Info("Access token issued",
		logger.String("subject", req.Subject),
		logger.String("role", role),
		logger.String("issued_by", issuer),
	)

	xresponse.Success(c, "Token issued", gin.H{
		"token":   token,
		"subject": req.Subject,
		"role":    role,
	})
}
