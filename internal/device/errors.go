package device

import "errors"

// Domain-specific errors for device enumeration.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrScanUnavailable is returned when the device scanning mechanism
	// itself is inaccessible (e.g. no permission to read /dev or sysfs).
	// Distinct from an empty scan result, which is not an error.
	ErrScanUnavailable = errors.New("device: scan unavailable")
)
