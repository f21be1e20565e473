package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AuthService exchanges the integration key for tokens acting as a guild member.
type AuthService struct {
	platform   platform.Platform
	tokenMgr   *auth.TokenManager
	apiKeyHash string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, p platform.Platform) *AuthService {
	return &AuthService{
		platform:   p,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		apiKeyHash: cfg.APIKeyHash,
	}
}

// IssueToken checks apiKey and returns a token acting as userID, who must be
// a guild member.
func (s *AuthService) IssueToken(ctx context.Context, userID domain.Snowflake, apiKey string) (string, time.Time, error) {
	if s.apiKeyHash == "" {
		return "", time.Time{}, apperrors.NewUnauthorized("token issuance disabled")
	}
	if err := auth.CompareAPIKey(s.apiKeyHash, apiKey); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid api key")
	}
	if _, err := s.platform.MemberRoles(ctx, userID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return "", time.Time{}, apperrors.NewUnauthorized("user is not a guild member")
		}
		return "", time.Time{}, apperrors.NewPlatformFailure("resolve member", err, false, false)
	}
	return s.tokenMgr.GenerateToken(userID)
}

// TokenManager exposes the token manager for middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
