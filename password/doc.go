// Package password hashes login credentials with argon2id.
//
// goGuard authenticates nothing by itself; callers check credentials and
// then create a session. This package is the hasher the demo server uses
// for that check. Hashes are PHC strings, so raising the cost parameters
// only affects new hashes and NeedsUpgrade flags the old ones.
//
// # What this package must NOT do
//
//   - Normalize or trim passwords.
//   - Store hashes. Persistence belongs to the caller.
package password
