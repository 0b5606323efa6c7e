package reconcile

import (
	"testing"

	"github.com/rocket-home/z2m-manager/internal/device"
	"github.com/rocket-home/z2m-manager/internal/envconfig"
)

func match(path, byID string, kind device.Kind, conf device.Confidence) device.Match {
	return device.Match{
		Descriptor: device.Descriptor{Path: path, ByIDPath: byID},
		Kind:       kind,
		Confidence: conf,
	}
}

func intentKinds(p Plan) []IntentKind {
	kinds := make([]IntentKind, len(p.Intents))
	for i, in := range p.Intents {
		kinds[i] = in.Kind
	}
	return kinds
}

func findIntent(p Plan, kind IntentKind) (Intent, bool) {
	for _, in := range p.Intents {
		if in.Kind == kind {
			return in, true
		}
	}
	return Intent{}, false
}

func TestReconcile_SelectsExactMatchOnFreshConfig(t *testing.T) {
	cfg := envconfig.EnvironmentConfig{MQTTUser: "user"}
	matches := []device.Match{
		match("/dev/ttyUSB1", "", device.KindUnknown, device.ConfidenceNone),
		match("/dev/ttyUSB0", "", device.KindZBDongleP, device.ConfidenceExact),
	}

	plan := Reconcile(cfg, matches, Inputs{FreshRun: true})

	set, ok := findIntent(plan, IntentSetDevice)
	if !ok {
		t.Fatalf("plan %v has no set-device intent", intentKinds(plan))
	}
	if set.Value != "/dev/ttyUSB0" {
		t.Errorf("selected device = %q, want exact match /dev/ttyUSB0", set.Value)
	}
	if plan.NoDevice {
		t.Error("NoDevice = true with matches present")
	}
}

func TestReconcile_PrefersStableAlias(t *testing.T) {
	cfg := envconfig.EnvironmentConfig{}
	matches := []device.Match{
		match("/dev/ttyUSB0", "/dev/serial/by-id/usb-ITead_Sonoff_Zigbee-if00", device.KindZBDongleP, device.ConfidenceExact),
	}

	plan := Reconcile(cfg, matches, Inputs{})

	set, ok := findIntent(plan, IntentSetDevice)
	if !ok {
		t.Fatal("no set-device intent")
	}
	if set.Value != "/dev/serial/by-id/usb-ITead_Sonoff_Zigbee-if00" {
		t.Errorf("selected device = %q, want by-id alias", set.Value)
	}
}

func TestReconcile_StabilityKeepsConfiguredDevice(t *testing.T) {
	cfg := envconfig.EnvironmentConfig{ZigbeeDevice: "/dev/ttyUSB1"}
	matches := []device.Match{
		match("/dev/ttyUSB0", "", device.KindZBDongleP, device.ConfidenceExact),
		match("/dev/ttyUSB1", "", device.KindUnknown, device.ConfidenceNone),
	}

	plan := Reconcile(cfg, matches, Inputs{GatewaySerial: "/dev/ttyUSB1"})

	if _, ok := findIntent(plan, IntentSetDevice); ok {
		t.Error("configured present device was switched to a higher-confidence match")
	}
}

func TestReconcile_ConfiguredDeviceMatchedByAlias(t *testing.T) {
	cfg := envconfig.EnvironmentConfig{ZigbeeDevice: "/dev/zigbee"}
	matches := []device.Match{
		match("/dev/ttyACM0", "/dev/zigbee", device.KindConBee, device.ConfidenceExact),
	}

	plan := Reconcile(cfg, matches, Inputs{GatewaySerial: "/dev/zigbee"})

	if !plan.Empty() {
		t.Errorf("plan = %v, want empty when alias matches configured path", intentKinds(plan))
	}
}

func TestReconcile_ConfiguredDeviceGoneSelectsReplacement(t *testing.T) {
	cfg := envconfig.EnvironmentConfig{ZigbeeDevice: "/dev/ttyUSB9"}
	matches := []device.Match{
		match("/dev/ttyACM0", "", device.KindZBDongleE, device.ConfidenceExact),
	}

	plan := Reconcile(cfg, matches, Inputs{GatewaySerial: "/dev/ttyUSB9"})

	set, ok := findIntent(plan, IntentSetDevice)
	if !ok {
		t.Fatal("no set-device intent for absent configured device")
	}
	if set.Value != "/dev/ttyACM0" {
		t.Errorf("selected device = %q, want /dev/ttyACM0", set.Value)
	}
	upd, ok := findIntent(plan, IntentUpdateGatewaySerial)
	if !ok {
		t.Fatal("no update-gateway-serial intent")
	}
	if upd.Value != "/dev/ttyACM0" {
		t.Errorf("gateway serial intent = %q, want /dev/ttyACM0", upd.Value)
	}
}

func TestReconcile_NoDevice(t *testing.T) {
	plan := Reconcile(envconfig.EnvironmentConfig{}, nil, Inputs{})

	if !plan.NoDevice {
		t.Error("NoDevice = false with no matches and no configured device")
	}
	if _, ok := findIntent(plan, IntentSetDevice); ok {
		t.Error("set-device intent fabricated with no hardware present")
	}
	if _, ok := findIntent(plan, IntentUpdateGatewaySerial); ok {
		t.Error("gateway serial intent fabricated with no hardware present")
	}
}

func TestReconcile_SecretOnlyOnFreshRun(t *testing.T) {
	cfg := envconfig.EnvironmentConfig{}

	plan := Reconcile(cfg, nil, Inputs{FreshRun: true})
	if _, ok := findIntent(plan, IntentGenerateSecret); !ok {
		t.Error("fresh run with unset password: no generate-secret intent")
	}

	plan = Reconcile(cfg, nil, Inputs{FreshRun: false})
	if _, ok := findIntent(plan, IntentGenerateSecret); ok {
		t.Error("existing file with unset password: spurious generate-secret intent")
	}

	cfg.MQTTPassword = "already-set"
	plan = Reconcile(cfg, nil, Inputs{FreshRun: true})
	if _, ok := findIntent(plan, IntentGenerateSecret); ok {
		t.Error("set password: spurious generate-secret intent")
	}
}

func TestReconcile_MissingTemplates(t *testing.T) {
	plan := Reconcile(envconfig.EnvironmentConfig{}, nil, Inputs{
		MissingTemplates: []string{"/data/bridge.conf", "/data/zigbee2mqtt.yaml"},
	})

	var got []string
	for _, in := range plan.Intents {
		if in.Kind == IntentMaterializeTemplate {
			got = append(got, in.Value)
		}
	}
	if len(got) != 2 {
		t.Errorf("materialize intents = %v, want both missing paths", got)
	}
}

func TestReconcile_Idempotence(t *testing.T) {
	cfg := envconfig.EnvironmentConfig{MQTTUser: "user"}
	matches := []device.Match{
		match("/dev/ttyUSB0", "", device.KindZBDongleP, device.ConfidenceExact),
	}

	first := Reconcile(cfg, matches, Inputs{FreshRun: true, MissingTemplates: []string{"/data/bridge.conf"}})
	if first.Empty() {
		t.Fatal("first plan empty, expected work to do")
	}

	// Simulate the applied state: device selected, secret set, files present.
	cfg.ZigbeeDevice = "/dev/ttyUSB0"
	cfg.MQTTPassword = "generated"
	second := Reconcile(cfg, matches, Inputs{GatewaySerial: "/dev/ttyUSB0"})
	if !second.Empty() {
		t.Errorf("second plan = %v, want empty", intentKinds(second))
	}
	if second.NoDevice {
		t.Error("second plan flags NoDevice")
	}
}

func TestReconcile_DoesNotReorderCallerSlice(t *testing.T) {
	matches := []device.Match{
		match("/dev/ttyUSB1", "", device.KindUnknown, device.ConfidenceNone),
		match("/dev/ttyUSB0", "", device.KindZBDongleP, device.ConfidenceExact),
	}

	Reconcile(envconfig.EnvironmentConfig{}, matches, Inputs{})

	if matches[0].Descriptor.Path != "/dev/ttyUSB1" {
		t.Error("Reconcile reordered the caller's match slice")
	}
}
