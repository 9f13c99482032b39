package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooShort is returned when a password fails the length policy.
var ErrPasswordTooShort = errors.New("password must be at least 6 characters long")

const minPasswordLength = 6

// ValidatePassword enforces the account password policy.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword returns a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword validates a password against its bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewResetKey generates a 16-byte hex account-recovery key. The plaintext is
// shown to the user exactly once; only a bcrypt hash is stored.
func NewResetKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
