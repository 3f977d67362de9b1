// Package prometheus renders otpAuth engine metrics in Prometheus text
// exposition format.
//
// Counters are named otpauth_*_total; the Argon2 latency histogram is
// otpauth_hash_latency_seconds. Nothing is registered globally: callers mount
// [Exporter.Handler] themselves.
package prometheus
