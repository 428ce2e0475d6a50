package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is a 128-bit random session identifier.
type SessionID [16]byte

// ErrInvalidSessionID is returned by ParseSessionID for malformed input.
var ErrInvalidSessionID = errors.New("invalid session id")

// NewSessionID draws a SessionID from crypto/rand.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

// NewSessionIDString returns a fresh identifier in its wire form.
func NewSessionIDString() (string, error) {
	sid, err := NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes the wire form. It rejects anything that is not
// exactly 16 bytes of base64url, which keeps arbitrary client input out
// of store keys.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID
	if len(sessionID) != base64.RawURLEncoding.EncodedLen(len(sid)) {
		return sid, ErrInvalidSessionID
	}
	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil || len(raw) != len(sid) {
		return sid, ErrInvalidSessionID
	}
	copy(sid[:], raw)
	return sid, nil
}

// ValidSessionID reports whether sessionID parses.
func ValidSessionID(sessionID string) bool {
	_, err := ParseSessionID(sessionID)
	return err == nil
}
