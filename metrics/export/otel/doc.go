// Package otel exposes goGuard engine metrics as OpenTelemetry observable
// instruments.
//
// [New] creates one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket, then registers a single
// callback that reads the engine snapshot on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
