// Package securetoken generates unguessable URL-safe tokens.
package securetoken

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultBytes is the entropy of a reset token: 256 bits.
const DefaultBytes = 32

// New returns n random bytes encoded as unpadded base64url.
func New(n int) (string, error) {
	if n <= 0 {
		n = DefaultBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("securetoken: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
