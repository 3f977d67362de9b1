// Package security derives the read-only posture report exposed by
// Engine.SecurityReport from a flattened view of the engine configuration.
package security
