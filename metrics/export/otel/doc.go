// Package otel publishes engine metrics through OpenTelemetry observable
// instruments.
//
// [New] registers one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket. A single callback reads
// Engine.MetricsSnapshot on each collection. Callers own the
// MeterProvider.
package otel
