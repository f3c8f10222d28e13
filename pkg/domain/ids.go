// Package domain holds typed identifiers shared across modules.
//
// Parse functions are the trust boundary: handlers call them on external input,
// and everything downstream can rely on the invariants they enforce.
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "civicid/pkg/domain-errors"
)

const maxUserIDLength = 128

// UserID identifies a platform account. Accounts are owned by the external
// auth system, so the value is opaque here.
// Invariant: non-empty, printable UTF-8, no surrounding whitespace, bounded length.
type UserID string

// ParseUserID validates an externally supplied user id.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if !utf8.ValidString(s) || len(s) > maxUserIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	if strings.TrimSpace(s) != s {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
		}
	}
	return UserID(s), nil
}

func (id UserID) String() string { return string(id) }

// IsNil reports whether the id is unset.
func (id UserID) IsNil() bool { return id == "" }

// ConnectionID is the internal surrogate key of a connection record.
type ConnectionID uuid.UUID

// NewConnectionID returns a fresh random id.
func NewConnectionID() ConnectionID { return ConnectionID(uuid.New()) }

// ParseConnectionID validates a connection id received from a caller.
func ParseConnectionID(s string) (ConnectionID, error) {
	if s == "" {
		return ConnectionID{}, dErrors.New(dErrors.CodeInvalidInput, "connection id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ConnectionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid connection id")
	}
	if parsed == uuid.Nil {
		return ConnectionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid connection id")
	}
	return ConnectionID(parsed), nil
}

func (id ConnectionID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero UUID.
func (id ConnectionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// DID is a decentralized identifier of the form did:<method>:<method-specific-id>.
type DID string

// ParseDID validates the generic DID syntax. Method specific rules are the
// identity agent's business.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did is required")
	}
	if !utf8.ValidString(s) || strings.ContainsAny(s, " \t\r\n") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid did")
	}
	rest, ok := strings.CutPrefix(s, "did:")
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did must start with did:")
	}
	method, specific, ok := strings.Cut(rest, ":")
	if !ok || method == "" || specific == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did must have a method and an identifier")
	}
	for _, r := range method {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid did method")
		}
	}
	return DID(s), nil
}

func (d DID) String() string { return string(d) }

// IsNil reports whether the DID is unset.
func (d DID) IsNil() bool { return d == "" }

// Method returns the DID method name, e.g. "peer" or "prism".
func (d DID) Method() string {
	rest, _ := strings.CutPrefix(string(d), "did:")
	method, _, _ := strings.Cut(rest, ":")
	return method
}
