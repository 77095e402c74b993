package domain

import "errors"

// Validation errors.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrUsernameTaken          = errors.New("username already registered")
)

// Authentication errors.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrIncorrectPassword = errors.New("incorrect password")
)

// Token errors. ErrTokenNotFound, ErrTokenExpired and ErrTokenClaimed come
// from the registry; callers outside the core see ErrInvalidOrExpiredToken
// or ErrRedemptionInProgress.
var (
	ErrTokenNotFound         = errors.New("reset token not found")
	ErrTokenExpired          = errors.New("reset token expired")
	ErrTokenClaimed          = errors.New("reset token already claimed")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrRedemptionInProgress is retryable: the token may become usable
	// again if the redemption holding it fails.
	ErrRedemptionInProgress = errors.New("password reset already in progress")
)

// Not-found errors.
var (
	ErrEmailNotFound = errors.New("email not found")
)

// Configuration errors. These are fatal at startup.
var (
	ErrUnsupportedHashScheme = errors.New("unsupported password hash scheme")
)

// Session errors.
var (
	ErrInvalidSession = errors.New("invalid session token")
)
