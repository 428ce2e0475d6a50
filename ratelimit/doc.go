// Package ratelimit counts failed authentication attempts per client key.
//
// # Window semantics
//
// A window opens on the first failure for a key with no open window and
// lasts Config.Window. Once MaxAttempts failures land in the window the
// key is limited until the window ends. A successful attempt deletes the
// entry outright.
//
// [MemoryLimiter] keeps entries in a map behind one RWMutex and relies on
// Sweep to reclaim expired windows. [RedisLimiter] uses INCR with a
// PEXPIRE set on the first hit; key prefix "<prefix>:rl:".
//
// # What this package must NOT do
//
//   - Derive client keys from requests. Callers supply them.
//   - Count successful attempts.
package ratelimit
