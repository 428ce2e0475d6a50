// Package internal contains helper utilities that are private to goGuard,
// most importantly session identifier generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher plus Sink implementations)
//   - envconfig: viper-backed configuration loading for the goguard CLI
//   - janitor: periodic expiry sweeps over the in-memory backends
//
// # What this package must NOT do
//
//   - Export types that appear in the public goGuard API.
//   - Be imported by any package outside the goGuard module.
package internal
