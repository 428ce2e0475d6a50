// Package goGuard defends the authentication boundary of a web application with three
// cooperating mechanisms: fingerprint-bound sessions that rotate or terminate on device
// drift, HMAC-signed request envelopes with replay protection, and a failed-attempt rate
// limiter for authentication endpoints.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
// Background sweeping starts only when [Engine.Start] is called and stops on
// [Engine.Close].
//
// # Architecture boundaries
//
// goGuard is the public facade. It exposes [Engine], [Builder], [Config] and result
// types. The mechanisms live in their own packages (session, risk, fingerprint, signer,
// ratelimit) and never import this one. Audit dispatch and the janitor live under
// internal/.
//
// # What this package must NOT do
//
//   - Hash or store passwords, or persist users. Those are caller concerns.
//   - Reveal why an envelope was rejected to remote callers.
//   - Start goroutines from Build.
//   - Log full session ids, secrets or signatures.
package goGuard
