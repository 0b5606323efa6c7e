// Package reconcile decides what must change on disk before the container
// stack can start, and applies those changes.
//
// Planning and application are split. Reconcile is a pure function of the
// loaded configuration, the enumerated adapters, and a snapshot of what
// already exists on disk; it mutates nothing and returns the same Plan for
// the same inputs. Apply executes a Plan through the configuration store
// and the gateway file, so every write goes through their atomic-rename
// discipline. Running reconcile twice with no hardware or file change in
// between yields an empty plan the second time.
//
// # Thread Safety
//
// Reconcile is safe for concurrent use. Apply writes files and must run
// under the store lock, one application at a time.
package reconcile
