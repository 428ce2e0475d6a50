// Package janitor runs periodic sweeps of expired state.
//
// A [Janitor] owns one goroutine driven by a [clock.Ticker]. Each tick it
// calls the Sweep method of every registered store through the store's
// public API, so sweeps take the same locks as request traffic.
//
// # What this package must NOT do
//
//   - Start goroutines from New.
//   - Reach into store internals.
package janitor
