// Package fingerprint derives device identity snapshots from request
// metadata.
//
// A [Fingerprint] holds four request-supplied strings (user agent,
// accept-language, accept-encoding, client address) plus a BLAKE3
// content hash. Fingerprints are compared field by field with [Diff] so
// that partial drift can be scored differently from total replacement.
//
// # What this package must NOT do
//
//   - Score drift (see package risk).
//   - Trust more than one layer of X-Forwarded-For.
//   - Return errors: missing inputs are empty strings.
package fingerprint
