// Package middleware puts the goGuard control flow in front of net/http
// handlers.
//
// # Middleware
//
//   - [LimitAuth]: rate limits an authentication endpoint and records the
//     handler's outcome.
//   - [RequireSignature]: verifies a signed envelope body.
//   - [RequireSession]: validates the session cookie, reissues it after a
//     rotation and stores the [goGuard.AuthResult] in the context.
//   - [RequirePrivileged]: admits only privileged sessions.
//
// Handlers read the session with goGuard.AuthResultFromContext.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every
// security decision is made by the Engine.
//
// # What this package must NOT do
//
//   - Reveal why an envelope was rejected.
//   - Access Redis. The Engine owns all I/O.
//   - Create sessions. Login handlers call Engine.CreateSession themselves.
package middleware
