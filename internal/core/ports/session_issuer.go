package ports

import (
	"time"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

// SessionClaims is what a verified access token asserts.
type SessionClaims struct {
	AccountID string
	Username  string
	ExpiresAt time.Time
}

// SessionIssuer mints and verifies bearer tokens handed out on login.
type SessionIssuer interface {
	Issue(account *domain.Account) (token string, expiresAt time.Time, err error)
	Parse(token string) (*SessionClaims, error)
}
