package utils

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// HashCredential hashes a shared credential using bcrypt, for generating
// ADMIN_PASSWORD_HASH values.
func HashCredential(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckCredential compares a submitted credential against the configured
// secret. When a bcrypt hash is configured it takes precedence; otherwise
// the plain secret is compared in constant time. An empty configuration
// never matches.
func CheckCredential(submitted, plain, bcryptHash string) bool {
	if bcryptHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(bcryptHash), []byte(submitted)) == nil
	}
	if plain == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(plain)) == 1
}
