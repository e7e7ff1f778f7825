package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a bcrypt hash suitable for storage in the users
// table. Empty passwords are rejected before they reach bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a login attempt against the stored hash. A nil
// return means the password matches.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("no password hash on record")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
