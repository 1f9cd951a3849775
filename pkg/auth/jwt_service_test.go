package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/txqueue/config"
	"github.com/alfanzaky/txqueue/internal/domain"
)

func newService() *JWTAuthService {
	return NewJWTAuthService(config.AuthConfig{
		AccessSecret:   "test-secret",
		Issuer:         "txqueue",
		Audience:       "txqueue-api",
		AccessTokenTTL: time.Hour,
	})
}

func TestGenerateAndValidate(t *testing.T) {
	s := newService()

	token, err := s.GenerateAccessToken("billing-service", "producer")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "billing-service", claims.Subject)
	require.Equal(t, domain.RoleProducer, claims.Role)
	require.WithinDuration(t, claims.IssuedAt.Add(time.Hour), claims.ExpiresAt, time.Second)
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	s := newService()

	_, err := s.GenerateAccessToken("", domain.RoleAdmin)
	require.Error(t, err)

	_, err = s.GenerateAccessToken("svc", "RESELLER")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	s := newService()

	_, err := s.ValidateToken("")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ValidateToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTAuthService(config.AuthConfig{AccessSecret: "other", Issuer: "txqueue", Audience: "txqueue-api"})
	token, err := other.GenerateAccessToken("svc", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongAudience := NewJWTAuthService(config.AuthConfig{AccessSecret: "test-secret", Issuer: "txqueue", Audience: "elsewhere"})
	token, err = wrongAudience.GenerateAccessToken("svc", domain.RoleAdmin)
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	s := newService()
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := s.GenerateAccessToken("svc", domain.RoleProducer)
	require.NoError(t, err)

	_, err = newService().ValidateToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}
