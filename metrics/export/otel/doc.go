// Package otel binds goAuthClient metrics to OpenTelemetry observable
// instruments.
//
// [New] registers an Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket, plus count and sum gauges. A single
// callback reads [goAuthClient.Engine.MetricsSnapshot] per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
