package ports

import (
	"context"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

// UserStore is the persistence port for accounts. Implementations must make
// every call atomic with respect to concurrent callers.
type UserStore interface {
	// Create assigns an ID and persists the account. It fails with
	// domain.ErrEmailAlreadyRegistered or domain.ErrUsernameTaken when a
	// uniqueness constraint is hit.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// UpdatePasswordHash overwrites the stored hash. There is no version check.
	UpdatePasswordHash(ctx context.Context, accountID, hash string) error
}
