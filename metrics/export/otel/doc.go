// Package otel publishes estateAuth engine metrics through OpenTelemetry.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and, for the login
// latency histogram, a bucket gauge carrying an "le" attribute plus a count gauge. A single
// callback reads [estateAuth.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
