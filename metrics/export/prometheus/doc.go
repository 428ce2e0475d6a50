// Package prometheus renders goGuard engine metrics in the Prometheus
// text exposition format.
//
// [New] takes any [Source], usually a *goGuard.Engine, and [Exporter.Handler]
// serves the rendering. Counters are named goguard_*_total; the latency
// histograms are goguard_validate_latency_seconds and
// goguard_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register anything in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
