package reconcile

// IntentKind names one category of planned mutation.
type IntentKind string

const (
	// IntentSetDevice selects an adapter path into the environment config.
	IntentSetDevice IntentKind = "set-device"

	// IntentGenerateSecret fills an unset broker password with a fresh
	// random secret.
	IntentGenerateSecret IntentKind = "generate-secret"

	// IntentMaterializeTemplate creates an absent template-backed file.
	IntentMaterializeTemplate IntentKind = "materialize-template"

	// IntentUpdateGatewaySerial points the gateway configuration at the
	// selected adapter path.
	IntentUpdateGatewaySerial IntentKind = "update-gateway-serial"
)

// Intent is one planned mutation. Value carries the device path for
// set-device and update-gateway-serial, and the target file path for
// materialize-template; it is empty for generate-secret.
type Intent struct {
	Kind  IntentKind `json:"kind"`
	Value string     `json:"value,omitempty"`
}

// Plan is the ordered outcome of one reconcile run. It is computed fresh
// each invocation, applied, and discarded, never persisted.
type Plan struct {
	Intents []Intent `json:"intents"`

	// NoDevice is set when no adapter is present and none is configured.
	// It is a reportable state, not an error.
	NoDevice bool `json:"no_device"`
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Intents) == 0
}

func (p *Plan) add(kind IntentKind, value string) {
	p.Intents = append(p.Intents, Intent{Kind: kind, Value: value})
}
