package gateway

import "errors"

// ErrConfigCorrupt indicates the gateway configuration file exists but
// cannot be decoded as YAML. The file is left in place for inspection.
var ErrConfigCorrupt = errors.New("gateway: configuration file corrupt")
