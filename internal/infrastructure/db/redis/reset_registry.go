package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/account-recovery/internal/core/domain"
	"github.com/99minutos/account-recovery/internal/pkg/securetoken"
)

const (
	defaultKeyPrefix = "reset:"
	maxIssueAttempts = 3

	// expiredRetention keeps a key around after its token expires so that a
	// late redemption is reported as expired rather than unknown.
	expiredRetention = time.Hour

	// defaultClaimTTL bounds how long a crashed redemption can hold a token.
	defaultClaimTTL = 30 * time.Second
)

// ResetRegistry stores reset tokens in Redis.
// Key format: reset:<token>        value: JSON-encoded domain.ResetToken
//
//	reset:claim:<token>  value: "1", set while a redemption is in flight
type ResetRegistry struct {
	client   redis.UniversalClient
	prefix   string
	ttl      time.Duration
	claimTTL time.Duration
	now      func() time.Time
	newTok   func() (string, error)
}

// RegistryOption customises a ResetRegistry.
type RegistryOption func(*ResetRegistry)

// WithKeyPrefix namespaces keys, e.g. per environment.
func WithKeyPrefix(prefix string) RegistryOption {
	return func(r *ResetRegistry) { r.prefix = prefix }
}

// WithClaimTTL sets how long a claim survives if it is never released.
func WithClaimTTL(d time.Duration) RegistryOption {
	return func(r *ResetRegistry) {
		if d > 0 {
			r.claimTTL = d
		}
	}
}

// WithRegistryClock overrides the clock used to stamp new tokens.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *ResetRegistry) { r.now = now }
}

// WithTokenSource overrides token generation.
func WithTokenSource(fn func() (string, error)) RegistryOption {
	return func(r *ResetRegistry) { r.newTok = fn }
}

// NewResetRegistry creates a ResetRegistry wrapping the given Redis client.
func NewResetRegistry(client redis.UniversalClient, ttl time.Duration, opts ...RegistryOption) *ResetRegistry {
	if ttl <= 0 {
		ttl = domain.DefaultResetTokenTTL
	}
	r := &ResetRegistry{
		client:   client,
		prefix:   defaultKeyPrefix,
		ttl:      ttl,
		claimTTL: defaultClaimTTL,
		now:      time.Now,
		newTok:   func() (string, error) { return securetoken.New(securetoken.DefaultBytes) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue stores a fresh token with SET NX so two issuers can never share one.
func (r *ResetRegistry) Issue(ctx context.Context, email string) (*domain.ResetToken, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		tok, err := r.newTok()
		if err != nil {
			return nil, err
		}

		rec := domain.NewResetToken(tok, email, r.now(), r.ttl)
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode reset token: %w", err)
		}

		ok, err := r.client.SetNX(ctx, r.key(tok), payload, r.ttl+expiredRetention).Result()
		if err != nil {
			return nil, fmt.Errorf("issue reset token: %w", err)
		}
		if ok {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("issue reset token: %d consecutive collisions", maxIssueAttempts)
}

func (r *ResetRegistry) Peek(ctx context.Context, token string) (*domain.ResetToken, error) {
	data, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("peek reset token: %w", err)
	}
	return decode(data)
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

// Claim takes the claim key with SET NX before checking the token exists.
// Consume drops token and claim in one transaction, so a claim taken after
// a consume always finds the token gone.
func (r *ResetRegistry) Claim(ctx context.Context, token string) error {
	ok, err := r.client.SetNX(ctx, r.claimKey(token), "1", r.claimTTL).Result()
	if err != nil {
		return fmt.Errorf("claim reset token: %w", err)
	}
	if !ok {
		return domain.ErrTokenClaimed
	}

	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		_ = r.client.Del(ctx, r.claimKey(token)).Err()
		return fmt.Errorf("claim reset token: %w", err)
	}
	if n == 0 {
		_ = r.client.Del(ctx, r.claimKey(token)).Err()
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *ResetRegistry) Release(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.claimKey(token)).Err(); err != nil {
		return fmt.Errorf("release reset token: %w", err)
	}
	return nil
}

// Consume relies on GETDEL being atomic: only one caller sees the value.
func (r *ResetRegistry) Consume(ctx context.Context, token string) error {
	var get *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.GetDel(ctx, r.key(token))
		pipe.Del(ctx, r.claimKey(token))
		return nil
	})
	if err == nil && get != nil {
		err = get.Err()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrTokenNotFound
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	return nil
}

func (r *ResetRegistry) key(token string) string {
	return r.prefix + token
}

func (r *ResetRegistry) claimKey(token string) string {
	return r.prefix + "claim:" + token
}

func decode(data []byte) (*domain.ResetToken, error) {
	var rec domain.ResetToken
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode reset token: %w", err)
	}
	return &rec, nil
}
