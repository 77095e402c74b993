package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

const (
	emailConstraint    = "accounts_email_key"
	usernameConstraint = "accounts_username_key"
)

// querier is satisfied by *pgxpool.Pool and pgxmock pools.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// UserStore implements ports.UserStore on the accounts table. Uniqueness is
// enforced by the table's constraints, so concurrent creates race safely.
type UserStore struct {
	db querier
}

func NewUserStore(db querier) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	c := account.Clone()
	c.ID = uuid.NewString()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Username, c.Email, c.PasswordHash, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, mapInsertError(err)
	}
	return c, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return s.findOne(ctx, `
		SELECT id::text, username, email, password_hash, created_at, updated_at
		FROM accounts WHERE username = $1`, username)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.findOne(ctx, `
		SELECT id::text, username, email, password_hash, created_at, updated_at
		FROM accounts WHERE email = $1`, email)
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		accountID, hash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Ping backs the readiness probe.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *UserStore) findOne(ctx context.Context, query string, arg string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case emailConstraint:
			return domain.ErrEmailAlreadyRegistered
		case usernameConstraint:
			return domain.ErrUsernameTaken
		}
	}
	return fmt.Errorf("insert account: %w", err)
}
