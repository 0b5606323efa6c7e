package reconcile

import "errors"

// ErrSecretGeneration indicates the cryptographic random source failed.
// There is no fallback to weaker randomness; the reconcile step fails.
var ErrSecretGeneration = errors.New("reconcile: secret generation failed")
