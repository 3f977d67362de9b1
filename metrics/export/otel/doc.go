// Package otel binds otpAuth engine metrics to OpenTelemetry observable
// instruments.
//
// Each counter becomes an Int64ObservableCounter and each histogram bucket an
// Int64ObservableGauge. One callback reads Engine.MetricsSnapshot per
// collection cycle. Callers own the MeterProvider.
package otel
