// Package audit implements delivery of security audit events.
//
// # Components
//
//   - [Event]: structured record with timestamp, kind, email, user, session, IP,
//     user agent and metadata.
//   - [Sink]: event consumer. Provided sinks write to a channel, a JSON line
//     writer, a zap logger or a Redis stream, or fan out via [MultiSink].
//   - [Dispatcher]: synchronous or buffered async relay with drop-if-full
//     semantics and panic isolation.
//
// Audit delivery is log-and-continue: a sink failure is never surfaced to the
// operation that produced the event.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the Engine owns that.
//   - Import otpAuth or any sibling internal package.
package audit
