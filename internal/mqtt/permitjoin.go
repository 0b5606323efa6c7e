package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultJoinWindow is how long the network accepts new devices when
	// the caller gives no explicit window.
	DefaultJoinWindow = 254 * time.Second

	qosAtLeastOnce = 1
)

// permitJoinRequest is the Zigbee2MQTT bridge request payload.
type permitJoinRequest struct {
	Value bool `json:"value"`
	Time  int  `json:"time,omitempty"`
}

// PermitJoin asks a running Zigbee2MQTT to open or close the device-join
// window over the bridge request topic, with no gateway restart. baseTopic
// is the gateway's MQTT prefix, normally "zigbee2mqtt". The window only
// applies when enabling.
func PermitJoin(ctx context.Context, opts Options, baseTopic string, enable bool, window time.Duration) error {
	opts = opts.withDefaults()
	if window <= 0 {
		window = DefaultJoinWindow
	}

	req := permitJoinRequest{Value: enable}
	if enable {
		req.Time = int(window.Seconds())
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("mqtt: encoding permit_join request: %w", err)
	}

	client := newClient(opts)
	defer client.Disconnect(disconnectQuiesceMS)

	if err := waitConnect(ctx, client, opts.Timeout); err != nil {
		return err
	}

	topic := baseTopic + "/bridge/request/permit_join"
	token := client.Publish(topic, qosAtLeastOnce, false, payload)

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-done:
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt: publishing to %s: %w", topic, err)
		}
		return nil
	case <-time.After(opts.Timeout):
		return fmt.Errorf("mqtt: publish to %s not acknowledged within %s", topic, opts.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
