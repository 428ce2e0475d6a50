package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/fxamacker/cbor/v2"
)

const sessionFormatVersionCurrent = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("session: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("session: CBOR decoder initialization failed: " + err.Error())
	}
}

// record is the persisted form of a Session. Times are unix
// milliseconds, zero for the zero time. The session id is the key and is
// not repeated in the value.
type record struct {
	Version       uint8                   `cbor:"1,keyasint"`
	UserID        string                  `cbor:"2,keyasint"`
	Fingerprint   fingerprint.Fingerprint `cbor:"3,keyasint"`
	Privileged    bool                    `cbor:"4,keyasint,omitempty"`
	RotationCount int                     `cbor:"5,keyasint,omitempty"`
	RiskScore     int                     `cbor:"6,keyasint,omitempty"`
	CreatedAt     int64                   `cbor:"7,keyasint"`
	LastAccessed  int64                   `cbor:"8,keyasint"`
	RotatedAt     int64                   `cbor:"9,keyasint,omitempty"`
	ExpiresAt     int64                   `cbor:"10,keyasint"`
}

// Encode serializes s with CBOR core deterministic encoding.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("session: encode nil session")
	}
	return encMode.Marshal(record{
		Version:       sessionFormatVersionCurrent,
		UserID:        s.UserID,
		Fingerprint:   s.Fingerprint,
		Privileged:    s.Privileged,
		RotationCount: s.RotationCount,
		RiskScore:     s.RiskScore,
		CreatedAt:     toMillis(s.CreatedAt),
		LastAccessed:  toMillis(s.LastAccessedAt),
		RotatedAt:     toMillis(s.RotatedAt),
		ExpiresAt:     toMillis(s.ExpiresAt),
	})
}

// Decode parses a blob produced by Encode. id is attached to the result.
func Decode(id string, data []byte) (*Session, error) {
	var rec record
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	switch {
	case rec.Version == 0:
		return nil, fmt.Errorf("%w: missing schema version", ErrSessionCorrupt)
	case rec.Version > sessionFormatVersionCurrent:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, rec.Version)
	case rec.UserID == "":
		return nil, fmt.Errorf("%w: missing user id", ErrSessionCorrupt)
	}
	return &Session{
		ID:             id,
		UserID:         rec.UserID,
		Fingerprint:    rec.Fingerprint,
		Privileged:     rec.Privileged,
		RotationCount:  rec.RotationCount,
		RiskScore:      rec.RiskScore,
		CreatedAt:      fromMillis(rec.CreatedAt),
		LastAccessedAt: fromMillis(rec.LastAccessed),
		RotatedAt:      fromMillis(rec.RotatedAt),
		ExpiresAt:      fromMillis(rec.ExpiresAt),
	}, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
