package domain

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,6}$`)

// Email is an address in canonical form: surrounding whitespace removed and
// lowercased. Every request shape that carries an address embeds this type so
// canonicalization happens once, at the edge.
type Email string

// NewEmail canonicalizes raw user input.
func NewEmail(raw string) Email {
	return Email(strings.ToLower(strings.TrimSpace(raw)))
}

func (e Email) String() string {
	return string(e)
}

// IsBlank reports whether the address is empty after trimming.
func (e Email) IsBlank() bool {
	return strings.TrimSpace(string(e)) == ""
}

// Canonical returns the canonical form of e. It is idempotent.
func (e Email) Canonical() Email {
	return NewEmail(string(e))
}

// Valid reports whether the canonical address matches the accepted syntax.
func (e Email) Valid() bool {
	return emailPattern.MatchString(string(e.Canonical()))
}

// UnmarshalText canonicalizes addresses decoded from JSON or form payloads.
func (e *Email) UnmarshalText(text []byte) error {
	*e = NewEmail(string(text))
	return nil
}
