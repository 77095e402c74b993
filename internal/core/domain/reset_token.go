package domain

import "time"

// DefaultResetTokenTTL is how long a reset token stays valid after issue.
const DefaultResetTokenTTL = time.Hour

// ResetState describes where a reset flow stands for a given token.
type ResetState string

const (
	ResetStateNoToken  ResetState = "no_token"
	ResetStateIssued   ResetState = "issued"
	ResetStateConsumed ResetState = "consumed"
	ResetStateExpired  ResetState = "expired"
)

// ResetToken is a pending password-reset request.
type ResetToken struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewResetToken builds a record expiring ttl after now.
func NewResetToken(token, email string, now time.Time, ttl time.Duration) *ResetToken {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	now = now.UTC()
	return &ResetToken{
		Token:     token,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// ValidAt reports whether the token is still usable at now.
// The expiry instant itself is inclusive.
func (t *ResetToken) ValidAt(now time.Time) bool {
	return !now.After(t.ExpiresAt)
}

// Clone returns a copy of the record.
func (t *ResetToken) Clone() *ResetToken {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
