package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TokenRequest exchanges the integration key for a token acting as UserID.
type TokenRequest struct {
	UserID domain.Snowflake `json:"user_id"`
	APIKey string           `json:"api_key"`
}

// TokenResponse returns an access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
