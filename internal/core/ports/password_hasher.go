package ports

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify compares in constant time with respect to the guess.
	Verify(plaintext, hash string) bool
}
