package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/zeebo/blake3"
)

// Field names one fingerprint dimension.
type Field uint8

const (
	// FieldClientAddress is the client network address.
	FieldClientAddress Field = iota
	// FieldUserAgent is the User-Agent header.
	FieldUserAgent
	// FieldAcceptLanguage is the Accept-Language header.
	FieldAcceptLanguage
	// FieldAcceptEncoding is the Accept-Encoding header.
	FieldAcceptEncoding
)

// String returns the stable lowercase name of the field.
func (f Field) String() string {
	switch f {
	case FieldClientAddress:
		return "client_address"
	case FieldUserAgent:
		return "user_agent"
	case FieldAcceptLanguage:
		return "accept_language"
	case FieldAcceptEncoding:
		return "accept_encoding"
	default:
		return "unknown"
	}
}

// Metadata is the raw request data a fingerprint is derived from.
// Empty fields are valid.
type Metadata struct {
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	RemoteAddr     string
	ForwardedFor   string
}

// Fingerprint is a device identity snapshot. Hash is derived from the
// other four fields and is informational; drift detection uses Diff.
type Fingerprint struct {
	UserAgent      string `json:"user_agent" cbor:"ua"`
	AcceptLanguage string `json:"accept_language" cbor:"al"`
	AcceptEncoding string `json:"accept_encoding" cbor:"ae"`
	ClientAddress  string `json:"client_address" cbor:"ip"`
	Hash           string `json:"hash" cbor:"h"`
}

// MetadataFromRequest extracts fingerprint metadata from r.
func MetadataFromRequest(r *http.Request) Metadata {
	if r == nil {
		return Metadata{}
	}
	return Metadata{
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		RemoteAddr:     r.RemoteAddr,
		ForwardedFor:   r.Header.Get("X-Forwarded-For"),
	}
}

// FromRequest is shorthand for Compute(MetadataFromRequest(r)).
func FromRequest(r *http.Request) Fingerprint {
	return Compute(MetadataFromRequest(r))
}

// Compute derives a Fingerprint from m. It is a pure function: equal
// metadata always produces a byte-identical result.
func Compute(m Metadata) Fingerprint {
	fp := Fingerprint{
		UserAgent:      strings.TrimSpace(m.UserAgent),
		AcceptLanguage: strings.TrimSpace(m.AcceptLanguage),
		AcceptEncoding: strings.TrimSpace(m.AcceptEncoding),
		ClientAddress:  ClientAddress(m.RemoteAddr, m.ForwardedFor),
	}
	fp.Hash = contentHash(fp)
	return fp
}

// ClientAddress resolves the client address behind at most one
// forwarding proxy. The right-most X-Forwarded-For entry is the address
// the proxy itself observed; without the header the transport peer is
// used.
func ClientAddress(remoteAddr, forwardedFor string) string {
	if forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		if last := normalizeHost(parts[len(parts)-1]); last != "" {
			return last
		}
	}
	return normalizeHost(remoteAddr)
}

func normalizeHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}

// Equal reports whether every compared dimension matches.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return len(Diff(f, other)) == 0
}

// Diff returns the dimensions that differ between stored and current,
// in a fixed order.
func Diff(stored, current Fingerprint) []Field {
	var changed []Field
	if stored.ClientAddress != current.ClientAddress {
		changed = append(changed, FieldClientAddress)
	}
	if stored.UserAgent != current.UserAgent {
		changed = append(changed, FieldUserAgent)
	}
	if stored.AcceptLanguage != current.AcceptLanguage {
		changed = append(changed, FieldAcceptLanguage)
	}
	if stored.AcceptEncoding != current.AcceptEncoding {
		changed = append(changed, FieldAcceptEncoding)
	}
	return changed
}

// contentHash length-prefixes each field so that shifting bytes between
// adjacent fields changes the digest.
func contentHash(fp Fingerprint) string {
	h := blake3.New()
	var lenBuf [4]byte
	for _, field := range [...]string{fp.UserAgent, fp.AcceptLanguage, fp.AcceptEncoding, fp.ClientAddress} {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(field)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.WriteString(field)
	}
	return hex.EncodeToString(h.Sum(nil))
}
