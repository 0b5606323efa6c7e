package device

// Driver identifies the coordinator firmware family Zigbee2MQTT should be
// pointed at. zstack covers TI chips (CC2531/CC2652), ember covers Silicon
// Labs EFR32-based dongles speaking EZSP.
type Driver string

const (
	DriverZStack  Driver = "zstack"
	DriverEmber   Driver = "ember"
	DriverUnknown Driver = "unknown"
)

// DriverGuess is a heuristic estimate of the required driver, with an
// explanation suitable for rendering to the user.
type DriverGuess struct {
	Driver     Driver     `json:"driver"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
}

// driverByKind maps classified adapter families to their usual driver.
var driverByKind = map[Kind]Driver{
	KindCC2531:    DriverZStack,
	KindZBDongleP: DriverZStack,
	KindZBDongleE: DriverEmber,
	KindEFR32:     DriverEmber,
}

// GuessDriver estimates which Zigbee2MQTT driver a classified adapter
// needs. ConBee is deliberately reported unknown: it uses deCONZ firmware
// and is neither zstack nor ember. The guess inherits the classification
// confidence, capped at heuristic for clone-shared USB IDs.
func GuessDriver(m Match) DriverGuess {
	if m.Kind == KindConBee {
		return DriverGuess{
			Driver:     DriverUnknown,
			Confidence: ConfidenceExact,
			Reason:     "ConBee uses deCONZ firmware, not zstack or ember",
		}
	}

	driver, ok := driverByKind[m.Kind]
	if !ok {
		return DriverGuess{
			Driver:     DriverUnknown,
			Confidence: ConfidenceNone,
			Reason:     "no driver signature for " + string(m.Kind),
		}
	}

	confidence := m.Confidence
	// CH340 and CP210x bridges are shared by many boards, so an exact USB
	// ID hit still only supports a heuristic driver call.
	switch m.Descriptor.USBID() {
	case "1a86:7523", "10c4:ea60":
		if confidence < ConfidenceHeuristic {
			confidence = ConfidenceHeuristic
		}
	}

	return DriverGuess{
		Driver:     driver,
		Confidence: confidence,
		Reason:     m.Description,
	}
}
