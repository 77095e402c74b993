package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

const (
	minArgon2MemoryKB = 8 * 1024
	argon2SaltLength  = 16
	argon2KeyLength   = 32
)

// Argon2Params tunes argon2id. Zero values fall back to the defaults below.
type Argon2Params struct {
	MemoryKB uint32
	Time     uint32
	Threads  uint8
}

var defaultArgon2 = Argon2Params{MemoryKB: 64 * 1024, Time: 1, Threads: 2}

var errMalformedPHC = errors.New("malformed argon2id hash")

type argon2Hasher struct {
	params Argon2Params
}

func newArgon2Hasher(p Argon2Params) (*argon2Hasher, error) {
	if p.MemoryKB == 0 {
		p.MemoryKB = defaultArgon2.MemoryKB
	}
	if p.Time == 0 {
		p.Time = defaultArgon2.Time
	}
	if p.Threads == 0 {
		p.Threads = defaultArgon2.Threads
	}
	if p.MemoryKB < minArgon2MemoryKB {
		return nil, fmt.Errorf("%w: argon2 memory %dKiB below %dKiB",
			domain.ErrUnsupportedHashScheme, p.MemoryKB, minArgon2MemoryKB)
	}
	return &argon2Hasher{params: p}, nil
}

// hash encodes in PHC form: $argon2id$v=19$m=65536,t=1,p=2$<salt>$<key>
func (a *argon2Hasher) hash(plaintext string) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("argon2: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, a.params.Time, a.params.MemoryKB, a.params.Threads, argon2KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		SchemeArgon2id,
		argon2.Version,
		a.params.MemoryKB, a.params.Time, a.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *argon2Hasher) verify(plaintext, encoded string) bool {
	p, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(plaintext), salt, p.Time, p.MemoryKB, p.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1
}

func parsePHC(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != SchemeArgon2id {
		return p, nil, nil, errMalformedPHC
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errMalformedPHC
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKB, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, errMalformedPHC
	}
	if p.MemoryKB == 0 || p.Time == 0 || p.Threads == 0 {
		return p, nil, nil, errMalformedPHC
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, errMalformedPHC
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errMalformedPHC
	}
	return p, salt, key, nil
}
