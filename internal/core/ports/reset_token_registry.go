package ports

import (
	"context"
	"time"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

// ResetTokenRegistry owns pending reset tokens. It is the only writer of
// domain.ResetToken records.
type ResetTokenRegistry interface {
	// Issue generates a fresh unguessable token bound to email.
	Issue(ctx context.Context, email string) (*domain.ResetToken, error)
	// Peek looks a token up without consuming it.
	Peek(ctx context.Context, token string) (*domain.ResetToken, error)
	// Validate returns the record when it exists and now <= expires_at,
	// domain.ErrTokenNotFound or domain.ErrTokenExpired otherwise.
	Validate(ctx context.Context, token string, now time.Time) (*domain.ResetToken, error)
	// Claim marks the token as being redeemed. Of two concurrent calls,
	// across processes sharing the registry, exactly one succeeds; the other
	// gets domain.ErrTokenClaimed. Unknown tokens give domain.ErrTokenNotFound.
	Claim(ctx context.Context, token string) error
	// Release drops a claim so the token can be redeemed again. Releasing an
	// unclaimed token is a no-op.
	Release(ctx context.Context, token string) error
	// Consume removes the token and any claim on it. Of two concurrent calls
	// exactly one succeeds; the other gets domain.ErrTokenNotFound.
	Consume(ctx context.Context, token string) error
}
