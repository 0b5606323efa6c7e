// Package manager is the facade the CLI talks to. It owns the one
// sequence that must never interleave with itself: lock the store, load
// the configuration, enumerate hardware, plan, apply, save, unlock. Every
// mutating operation goes through that sequence or through the same lock,
// so two invocations racing on the .env file cannot corrupt it.
//
// All results come back as structured values, not rendered text, so the
// CLI, a TUI, or anything else can present them its own way.
//
// # Thread Safety
//
// A Manager may be shared across goroutines; the store's advisory lock
// serializes the mutating operations. Read-only operations (ListDevices,
// CurrentStatus, History) take no lock.
package manager
