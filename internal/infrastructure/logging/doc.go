// Package logging provides structured logging over log/slog.
//
// Every entry carries the service name and version as default fields.
// Text on stderr is the default so command output on stdout stays
// machine-readable; JSON is available for log collectors.
//
// Usage:
//
//	logger := logging.New(cfg, version)
//	logger.Info("stack started", "services", 3)
//
// Never log secrets: the broker password and cloud credentials must not
// appear in any entry, at any level.
package logging
