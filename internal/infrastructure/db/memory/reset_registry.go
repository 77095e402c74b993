package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-recovery/internal/core/domain"
	"github.com/99minutos/account-recovery/internal/pkg/securetoken"
)

const maxIssueAttempts = 3

// ResetRegistry is the process-local reset-token registry. Expired records
// stay until Sweep removes them; Validate rejects them in the meantime.
type ResetRegistry struct {
	mu      sync.Mutex
	records map[string]*domain.ResetToken
	claimed map[string]struct{}
	ttl     time.Duration
	now     func() time.Time
	newTok  func() (string, error)
	onSweep func(removed int)
}

// RegistryOption customises a ResetRegistry.
type RegistryOption func(*ResetRegistry)

// WithRegistryClock overrides the clock used to stamp new tokens.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *ResetRegistry) { r.now = now }
}

// WithTokenSource overrides token generation. Tests use it to force collisions.
func WithTokenSource(fn func() (string, error)) RegistryOption {
	return func(r *ResetRegistry) { r.newTok = fn }
}

// WithSweepHook is called after every sweeper pass that removed something.
func WithSweepHook(fn func(removed int)) RegistryOption {
	return func(r *ResetRegistry) { r.onSweep = fn }
}

func NewResetRegistry(ttl time.Duration, opts ...RegistryOption) *ResetRegistry {
	if ttl <= 0 {
		ttl = domain.DefaultResetTokenTTL
	}
	r := &ResetRegistry{
		records: make(map[string]*domain.ResetToken),
		claimed: make(map[string]struct{}),
		ttl:     ttl,
		now:     time.Now,
		newTok:  func() (string, error) { return securetoken.New(securetoken.DefaultBytes) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ResetRegistry) Issue(_ context.Context, email string) (*domain.ResetToken, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		tok, err := r.newTok()
		if err != nil {
			return nil, err
		}

		rec := domain.NewResetToken(tok, email, r.now(), r.ttl)

		r.mu.Lock()
		_, taken := r.records[tok]
		if !taken {
			r.records[tok] = rec
		}
		r.mu.Unlock()

		if !taken {
			return rec.Clone(), nil
		}
	}
	return nil, fmt.Errorf("issue reset token: %d consecutive collisions", maxIssueAttempts)
}

func (r *ResetRegistry) Peek(_ context.Context, token string) (*domain.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[token]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return rec.Clone(), nil
}

func (r *ResetRegistry) Validate(ctx context.Context, token string, now time.Time) (*domain.ResetToken, error) {
	rec, err := r.Peek(ctx, token)
	if err != nil {
		return nil, err
	}
	if !rec.ValidAt(now) {
		return nil, domain.ErrTokenExpired
	}
	return rec, nil
}

func (r *ResetRegistry) Claim(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[token]; !ok {
		return domain.ErrTokenNotFound
	}
	if _, busy := r.claimed[token]; busy {
		return domain.ErrTokenClaimed
	}
	r.claimed[token] = struct{}{}
	return nil
}

func (r *ResetRegistry) Release(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claimed, token)
	return nil
}

func (r *ResetRegistry) Consume(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[token]; !ok {
		return domain.ErrTokenNotFound
	}
	delete(r.records, token)
	delete(r.claimed, token)
	return nil
}

// Len reports how many records, expired or not, are held.
func (r *ResetRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Sweep drops every record that has expired at now and returns the count.
// Claimed records are left for the redemption holding them.
func (r *ResetRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for tok, rec := range r.records {
		if _, busy := r.claimed[tok]; busy {
			continue
		}
		if !rec.ValidAt(now) {
			delete(r.records, tok)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled. It blocks.
func (r *ResetRegistry) RunSweeper(ctx context.Context, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				log.Debug().Int("removed", n).Msg("expired reset tokens swept")
				if r.onSweep != nil {
					r.onSweep(n)
				}
			}
		}
	}
}
