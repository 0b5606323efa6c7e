package mqtt

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Username: "u", Password: "p"}.withDefaults()

	if opts.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", opts.Host, DefaultHost)
	}
	if opts.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", opts.Port, DefaultPort)
	}
	if opts.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", opts.Timeout, DefaultTimeout)
	}
}

func TestOptionsDefaults_ExplicitValuesKept(t *testing.T) {
	opts := Options{Host: "broker.local", Port: 8883, Timeout: time.Second}.withDefaults()

	if opts.Host != "broker.local" || opts.Port != 8883 || opts.Timeout != time.Second {
		t.Errorf("withDefaults() overrode explicit values: %+v", opts)
	}
}

func TestBrokerURL(t *testing.T) {
	opts := Options{Host: "mqtt.lan", Port: 1884}
	if got := opts.brokerURL(); got != "tcp://mqtt.lan:1884" {
		t.Errorf("brokerURL() = %q, want tcp://mqtt.lan:1884", got)
	}
}

func TestPermitJoinRequestPayload(t *testing.T) {
	enable, err := json.Marshal(permitJoinRequest{Value: true, Time: 60})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(enable) != `{"value":true,"time":60}` {
		t.Errorf("enable payload = %s", enable)
	}

	disable, err := json.Marshal(permitJoinRequest{Value: false})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(disable) != `{"value":false}` {
		t.Errorf("disable payload = %s, want no time field", disable)
	}
}
