// Package clock abstracts the time source so that session expiry,
// signature skew windows, rate-limit windows, and janitor sweeps can be
// driven deterministically in tests.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling package.
//   - Keep global state; every FakeClock is independent.
package clock
