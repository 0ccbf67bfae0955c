// Package identity covers who the local participant is: a stable per-process
// session id, display-name validation, and the room id format.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	minNameLen = 1
	maxNameLen = 40
)

var (
	ErrInvalidName   = errors.New("display name must be 1-40 characters")
	ErrInvalidRoomID = errors.New("room id must be a version-4 UUID")
)

// Session is the local participant identity. The id is generated once and
// reused for the lifetime of the process, across room switches.
type Session struct {
	ID   string
	Name string
}

// NewSession generates a fresh participant identity.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// NormalizeName applies Unicode NFC normalization and trims surrounding
// whitespace. It does not validate length.
func NormalizeName(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// ValidateName normalizes a user-supplied display name and checks its length.
// Violations return ErrInvalidName and the action must be aborted without
// mutating any state.
func ValidateName(s string) (string, error) {
	name := NormalizeName(s)
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return "", fmt.Errorf("%w: got %d characters", ErrInvalidName, n)
	}
	return name, nil
}

// IsUUIDv4 reports whether s is a canonical version-4 UUID. Sender ids on vote
// broadcasts and room ids are rejected unless they pass this check.
func IsUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}

// ParseRoomID validates a requested room identifier. Anything that is not a
// canonical UUIDv4 is treated as "no room".
func ParseRoomID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsUUIDv4(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomID, s)
	}
	return strings.ToLower(s), nil
}

// NewRoomID generates an id for a freshly created room.
func NewRoomID() string {
	return uuid.NewString()
}
