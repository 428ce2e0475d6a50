// Package session owns the lifecycle of authenticated sessions: creation
// under a per-user cap, validation against a device fingerprint, risk-driven
// rotation, privilege escalation and destruction.
//
// # Lifecycle
//
// Expiry is absolute. A session lives for PrivilegedTTL or RegularTTL from
// its creation or last rotation and access never extends it. Validation
// scores fingerprint drift with a [risk.Engine]; low and medium risk keep the
// session, high risk rotates it to a new id inside the same critical
// section. A session that rotated MaxRotations times is destroyed instead
// and the caller must re-authenticate.
//
// # Backends
//
// [MemoryStore] keeps sessions in process behind one lock. [RedisStore]
// keeps CBOR records in Redis with a per-user sorted-set index and uses
// WATCH/MULTI transactions for atomicity. Both enforce the same policy.
//
// # Architecture boundaries
//
// This package owns the [Store] implementations and the [Session] model. It
// does NOT parse HTTP requests, set cookies, or emit audit events. Those
// belong to the Engine and middleware.
//
// # What this package must NOT do
//
//   - Import goGuard or middleware (no upward imports).
//   - Extend ExpiresAt on access.
//   - Flip Privileged to true anywhere except Escalate.
package session
