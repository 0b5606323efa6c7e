package mqtt

import "errors"

// ErrConnect indicates the broker rejected or never answered a connection
// attempt. The wrapped error carries the broker's reason when it gave one.
var ErrConnect = errors.New("mqtt: broker connection failed")
