// Package envconfig loads goGuard configuration from an optional YAML file
// and GOGUARD_* environment variables.
//
// Precedence, lowest first: goGuard.DefaultConfig, the file, the
// environment. Nested keys map to variables by upper-casing and replacing
// dots with underscores, so signer.max_skew becomes GOGUARD_SIGNER_MAX_SKEW.
// Durations use time.ParseDuration syntax.
//
// # What this package must NOT do
//
//   - Validate. Engine Build owns validation.
//   - Touch the global viper instance.
package envconfig
