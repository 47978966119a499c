// Package prometheus exposes goAuthClient metrics as a Prometheus collector.
//
// [New] wraps an [goAuthClient.Engine]; the returned [Collector] can be
// registered with any registry, or served directly with [Collector.Handler]
// which uses a private registry. Counter names are prefixed
// goauthclient_*_total and the single histogram is
// goauthclient_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
