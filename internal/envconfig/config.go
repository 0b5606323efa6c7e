package envconfig

import "strings"

// Cloud bridge defaults. The cloud host is the managed remote broker the
// mosquitto bridge forwards to when enabled.
const (
	DefaultCloudHost     = "mq.rocket-home.ru"
	DefaultCloudProtocol = "mqttv311"
	DefaultMQTTUser      = "user"
	DefaultDevicePath    = "/dev/zigbee"
)

// EnvironmentConfig is the typed view of the persisted .env file.
//
// Secret fields (MQTTPassword, CloudPassword) follow the no-clobber rule:
// see the package documentation.
type EnvironmentConfig struct {
	// Local broker credentials shared by mosquitto and zigbee2mqtt.
	MQTTUser     string
	MQTTPassword string

	// ZigbeeDevice is the serial device path bound into the gateway
	// container. Normally the stable /dev/zigbee udev alias.
	ZigbeeDevice string

	// Optional-service toggles.
	NodeREDEnabled bool

	// Cloud MQTT bridge settings.
	CloudEnabled  bool
	CloudHost     string
	CloudUser     string
	CloudPassword string
	CloudProtocol string // mqttv31 | mqttv311 | mqttv50
}

// Default returns the template-default configuration used on first run.
// The broker password is deliberately empty: fresh installations get a
// generated secret from the reconciler, never a predictable default.
func Default() EnvironmentConfig {
	return EnvironmentConfig{
		MQTTUser:      DefaultMQTTUser,
		ZigbeeDevice:  DefaultDevicePath,
		CloudHost:     DefaultCloudHost,
		CloudProtocol: DefaultCloudProtocol,
	}
}

// ComposeProfiles returns the compose profiles that must be enabled for the
// optional services this configuration turns on.
func (c EnvironmentConfig) ComposeProfiles() []string {
	var profiles []string
	if c.NodeREDEnabled {
		profiles = append(profiles, "nodered")
	}
	return profiles
}

// normalizeProtocol clamps a bridge protocol value to the supported set,
// falling back to the default for anything else.
func normalizeProtocol(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "mqttv31":
		return "mqttv31"
	case "mqttv311":
		return "mqttv311"
	case "mqttv50":
		return "mqttv50"
	default:
		return DefaultCloudProtocol
	}
}

// parseBool interprets the boolean spellings accepted in .env files.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
