// Package stack drives the container runtime that hosts the broker, the
// Zigbee gateway and the optional automation-flow service.
//
// Controller is a thin adapter over docker compose: it builds the command
// line (compose file, profiles, environment) and shells out through a
// Runner. Nothing here holds state about the containers; the runtime owns
// that, and Status re-reads it on every call. A failed runtime invocation
// surfaces as *CommandError carrying the verb and the runtime's stderr.
//
// # Thread Safety
//
// Controller is immutable after construction and safe for concurrent use.
// Concurrent mutating verbs are serialized by the runtime itself, not here.
package stack
