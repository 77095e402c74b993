package ports

import (
	"context"
	"time"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

// AuthResult is returned by a successful login.
type AuthResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	Account     *domain.Account
}

// AuthService is the use-case port consumed by the HTTP layer.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*domain.Account, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	RequestPasswordReset(ctx context.Context, email string) (*domain.ResetToken, error)
	SetNewPassword(ctx context.Context, token, newPassword string) error
	Profile(ctx context.Context, username string) (*domain.Account, error)
}
