// Package prometheus renders estateAuth engine metrics in the Prometheus text exposition
// format.
//
// [NewExporter] wraps an [estateAuth.Engine] and exposes an [http.Handler]. Counters are
// named estate_*_total; the single histogram is estate_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
