// Package signer produces and verifies HMAC-SHA256 signed envelopes and
// tracks used nonces to stop replays.
//
// # Wire format
//
// An [Envelope] is {"payload", "timestamp", "nonce", "signature"}. The
// signature is hex(HMAC-SHA256(secret, C)) where C is the canonical JSON
// of {"nonce": nonce, "payload": payload, "timestamp": timestamp}.
// Canonical JSON sorts object keys recursively and emits no whitespace;
// see [Canonicalize]. Canonicalization is the interoperability contract
// with other implementations and must not change.
//
// # Verification order
//
// Malformed input, then clock skew, then nonce reuse, then a
// constant-time signature comparison, then an atomic nonce reservation.
// Every rejection returns [ErrEnvelopeRejected]; the specific [Reason]
// is logged and exposed to the local caller only.
//
// # What this package must NOT do
//
//   - Reveal the rejection reason in an error message.
//   - Consume a nonce for an envelope whose signature fails.
//   - Retain a nonce longer than the skew window requires.
package signer
