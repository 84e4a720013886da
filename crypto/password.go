package crypto

import (
	"fmt"

	"sitaraServer/config"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", config.MinPasswordLength)

func HashPassword(password string) (string, error) {
	if len(password) < config.MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. Malformed hashes
// count as a mismatch.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
