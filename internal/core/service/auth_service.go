package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/account-recovery/internal/core/domain"
	"github.com/99minutos/account-recovery/internal/core/ports"
)

const tokenTypeBearer = "bearer"

// AuthService implements registration, login and the password-reset flow.
type AuthService struct {
	users    ports.UserStore
	tokens   ports.ResetTokenRegistry
	hasher   ports.PasswordHasher
	sessions ports.SessionIssuer
	notices  ports.NoticeQueue
	now      func() time.Time
	log      zerolog.Logger
}

// Option customises an AuthService.
type Option func(*AuthService)

// WithNoticeQueue hands every issued reset token to q for out-of-band delivery.
func WithNoticeQueue(q ports.NoticeQueue) Option {
	return func(s *AuthService) { s.notices = q }
}

// WithClock overrides the time source used for token validation.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithLogger sets the service logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *AuthService) { s.log = log }
}

func NewAuthService(
	users ports.UserStore,
	tokens ports.ResetTokenRegistry,
	hasher ports.PasswordHasher,
	sessions ports.SessionIssuer,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		sessions: sessions,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new account. Only the email is checked up front; the
// store's own constraints still apply to the username.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.Account, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, domain.ErrInvalidInput
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailAlreadyRegistered
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("register: lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, &domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyRegistered) || errors.Is(err, domain.ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("register: create account: %w", err)
	}

	s.log.Info().Str("account_id", created.ID).Str("username", created.Username).Msg("account registered")
	return created, nil
}

// Login verifies the password and issues a signed access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidInput
	}

	account, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("login: lookup username: %w", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.log.Debug().Str("username", username).Msg("login rejected: incorrect password")
		return nil, domain.ErrIncorrectPassword
	}

	token, expiresAt, err := s.sessions.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("login: issue session: %w", err)
	}

	return &ports.AuthResult{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   expiresAt,
		Account:     account,
	}, nil
}

// RequestPasswordReset issues a reset token for the account owning email.
// The token is returned to the caller as well as queued for delivery.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*domain.ResetToken, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidInput
	}

	account, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrEmailNotFound
		}
		return nil, fmt.Errorf("request reset: lookup email: %w", err)
	}

	tok, err := s.tokens.Issue(ctx, account.Email)
	if err != nil {
		return nil, fmt.Errorf("request reset: issue token: %w", err)
	}

	if s.notices != nil {
		s.notices.Enqueue(ports.ResetNotice{
			Email:     account.Email,
			Username:  account.Username,
			Token:     tok.Token,
			ExpiresAt: tok.ExpiresAt,
		})
	}

	s.log.Info().Str("account_id", account.ID).Time("expires_at", tok.ExpiresAt).Msg("reset token issued")
	return tok, nil
}

// SetNewPassword redeems a reset token. The token is claimed in the registry
// before the hash is written and consumed only after the write lands, so
// concurrent redemptions, even from other processes, have a single writer and
// a failed write leaves the token usable.
func (s *AuthService) SetNewPassword(ctx context.Context, token, newPassword string) (err error) {
	if token == "" {
		return domain.ErrInvalidOrExpiredToken
	}
	if newPassword == "" {
		return domain.ErrInvalidInput
	}

	rec, err := s.tokens.Validate(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) || errors.Is(err, domain.ErrTokenExpired) {
			s.log.Debug().Err(err).Msg("reset token rejected")
			return fmt.Errorf("%w: %w", domain.ErrInvalidOrExpiredToken, err)
		}
		return fmt.Errorf("set new password: validate token: %w", err)
	}

	if err := s.tokens.Claim(ctx, token); err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenClaimed):
			return fmt.Errorf("%w: %w", domain.ErrRedemptionInProgress, err)
		case errors.Is(err, domain.ErrTokenNotFound):
			// Redeemed by someone else between Validate and Claim.
			return fmt.Errorf("%w: %w", domain.ErrInvalidOrExpiredToken, err)
		}
		return fmt.Errorf("set new password: claim token: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := s.tokens.Release(context.WithoutCancel(ctx), token); rerr != nil {
			s.log.Warn().Err(rerr).Msg("reset token claim not released")
		}
	}()

	account, err := s.users.FindByEmail(ctx, rec.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("set new password: lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("set new password: hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("set new password: update hash: %w", err)
	}

	if err := s.tokens.Consume(ctx, token); err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return fmt.Errorf("%w: %w", domain.ErrInvalidOrExpiredToken, err)
		}
		return fmt.Errorf("set new password: consume token: %w", err)
	}

	s.log.Info().Str("account_id", account.ID).Msg("password reset completed")
	return nil
}

// Profile returns the account for an authenticated username.
func (s *AuthService) Profile(ctx context.Context, username string) (*domain.Account, error) {
	account, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("profile: %w", err)
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
