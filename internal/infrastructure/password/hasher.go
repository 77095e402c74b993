// Package password implements ports.PasswordHasher with bcrypt and argon2id.
//
// The configured scheme decides how new hashes are produced. Verification
// recognises every supported encoding, so accounts hashed under a previous
// scheme keep working after the configuration changes.
package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

// Config selects and tunes the hashing scheme.
type Config struct {
	Scheme     string
	BcryptCost int
	Argon2     Argon2Params
}

// Hasher hashes with one scheme and verifies any supported one.
type Hasher struct {
	scheme string
	bcrypt *bcryptHasher
	argon2 *argon2Hasher
}

// NewHasher validates cfg. An error here is a startup misconfiguration.
func NewHasher(cfg Config) (*Hasher, error) {
	scheme := strings.ToLower(strings.TrimSpace(cfg.Scheme))
	if scheme == "" {
		scheme = SchemeBcrypt
	}

	bh, err := newBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	ah, err := newArgon2Hasher(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case SchemeBcrypt, SchemeArgon2id:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedHashScheme, cfg.Scheme)
	}

	return &Hasher{scheme: scheme, bcrypt: bh, argon2: ah}, nil
}

// Scheme reports which scheme new hashes use.
func (h *Hasher) Scheme() string { return h.scheme }

func (h *Hasher) Hash(plaintext string) (string, error) {
	if h.scheme == SchemeArgon2id {
		return h.argon2.hash(plaintext)
	}
	return h.bcrypt.hash(plaintext)
}

// Verify dispatches on the hash prefix. Unknown or malformed hashes never
// verify.
func (h *Hasher) Verify(plaintext, hash string) bool {
	switch {
	case strings.HasPrefix(hash, "$"+SchemeArgon2id+"$"):
		return h.argon2.verify(plaintext, hash)
	case isBcryptHash(hash):
		return h.bcrypt.verify(plaintext, hash)
	default:
		return false
	}
}

func isBcryptHash(hash string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(hash, p) {
			return true
		}
	}
	return false
}

type bcryptHasher struct {
	cost int
}

func newBcryptHasher(cost int) (*bcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d outside [%d,%d]",
			domain.ErrUnsupportedHashScheme, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &bcryptHasher{cost: cost}, nil
}

func (b *bcryptHasher) hash(plaintext string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("bcrypt: %w: %w", domain.ErrInvalidInput, err)
		}
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

// bcrypt.CompareHashAndPassword compares the derived keys with
// subtle.ConstantTimeCompare.
func (b *bcryptHasher) verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
