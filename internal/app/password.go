package app

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	passwordMinLength = 8
	// bcrypt ignores input beyond 72 bytes; longer passwords are rejected.
	passwordMaxBytes = 72
	passwordSymbols  = "@#$%^&+=!"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost
// is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// passwordIsStrong requires at least 8 characters with an ASCII uppercase
// letter, a digit and one symbol from passwordSymbols. Line breaks are not
// allowed.
func passwordIsStrong(password string) bool {
	if utf8.RuneCountInString(password) < passwordMinLength || len(password) > passwordMaxBytes {
		return false
	}

	var hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r == '\n' || r == '\r':
			return false
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	return hasUpper && hasDigit && hasSymbol
}
