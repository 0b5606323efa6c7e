package device

import "strings"

// signature describes one known USB vendor:product pair.
type signature struct {
	kind        Kind
	description string
}

// signatures is the static table of known Zigbee adapter USB IDs.
// Keys are lowercase "vid:pid". Extending support for a new adapter
// family means adding a row here (and, if needed, a marker below).
var signatures = map[string]signature{
	"0451:16a8": {KindCC2531, "Texas Instruments CC2531"},
	"10c4:ea60": {KindZBDongleP, "Silicon Labs CP210x (Sonoff ZBDongle-P / CC2652P)"},
	"1a86:55d4": {KindZBDongleE, "CH9102 (Sonoff ZBDongle-E)"},
	"10c4:8a2a": {KindEFR32, "Silicon Labs EFR32"},
	"1cf1:0030": {KindConBee, "dresden elektronik ConBee / ConBee II"},
	"0403:6015": {KindSLZB06, "FTDI (SLZB-06, Tube)"},
	"1a86:7523": {KindCC2531, "CH340 (CC2531 clones)"},
	"303a:1001": {KindESP32, "Espressif ESP32-based coordinator"},
}

// markers maps descriptive-string fragments to adapter kinds. Used when
// the USB ID is ambiguous or missing (several CC2531 clones share the
// generic CH340 bridge ID, and by-id symlink names often carry the model).
var markers = []struct {
	substr string
	kind   Kind
}{
	{"zbdongle-p", KindZBDongleP},
	{"zbdongle-e", KindZBDongleE},
	{"cc2531", KindCC2531},
	{"cc2652", KindZBDongleP},
	{"conbee", KindConBee},
	{"slzb", KindSLZB06},
	{"efr32", KindEFR32},
	{"sonoff", KindZBDongleP},
}

// Classify maps a Descriptor to a recognized adapter kind.
//
// Matching policy, in priority order:
//  1. Exact vendor:product hit in the signature table.
//  2. Known marker substring in the serial description or by-id alias.
//  3. Unknown, with ConfidenceNone.
//
// Classify is a pure total function: it never errors and performs no I/O,
// so unknown hardware degrades to a listed-but-unmatched entry.
func Classify(d Descriptor) Match {
	if sig, ok := signatures[strings.ToLower(d.USBID())]; ok {
		return Match{
			Descriptor:  d,
			Kind:        sig.kind,
			Confidence:  ConfidenceExact,
			Description: sig.description,
		}
	}

	haystack := strings.ToLower(d.Serial + " " + d.ByIDPath)
	for _, m := range markers {
		if strings.Contains(haystack, m.substr) {
			return Match{
				Descriptor:  d,
				Kind:        m.kind,
				Confidence:  ConfidenceHeuristic,
				Description: "matched marker " + m.substr,
			}
		}
	}

	return Match{
		Descriptor:  d,
		Kind:        KindUnknown,
		Confidence:  ConfidenceNone,
		Description: "unrecognized serial device",
	}
}

// ClassifyAll classifies every descriptor and returns the matches in the
// canonical order established by SortMatches.
func ClassifyAll(descriptors []Descriptor) []Match {
	matches := make([]Match, 0, len(descriptors))
	for _, d := range descriptors {
		matches = append(matches, Classify(d))
	}
	SortMatches(matches)
	return matches
}
