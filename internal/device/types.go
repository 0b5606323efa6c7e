package device

import "sort"

// Descriptor is a raw snapshot of one discovered serial device.
// All fields except Path are optional; absent values are empty strings.
// Descriptors are never persisted, they live for one enumeration pass.
type Descriptor struct {
	// Path is the character device path, e.g. /dev/ttyUSB0.
	Path string `json:"path"`

	// VendorID and ProductID are lowercase hex USB IDs, e.g. "10c4", "ea60".
	VendorID  string `json:"vendor_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`

	// Serial is the USB serial/product description string when available.
	Serial string `json:"serial,omitempty"`

	// ByIDPath is a stable alias (/dev/serial/by-id/... or /dev/zigbee)
	// preferred over Path for configuration, since it survives re-plugging.
	ByIDPath string `json:"by_id_path,omitempty"`

	// BusPath is the sysfs USB bus location, informational only.
	BusPath string `json:"bus_path,omitempty"`
}

// USBID returns the "vid:pid" signature key, or "" if either half is missing.
func (d Descriptor) USBID() string {
	if d.VendorID == "" || d.ProductID == "" {
		return ""
	}
	return d.VendorID + ":" + d.ProductID
}

// PreferredPath returns the stable alias when one exists, else the raw path.
func (d Descriptor) PreferredPath() string {
	if d.ByIDPath != "" {
		return d.ByIDPath
	}
	return d.Path
}

// Kind identifies a known Zigbee adapter family.
type Kind string

const (
	KindCC2531    Kind = "cc2531"
	KindZBDongleP Kind = "zbdongle-p"
	KindZBDongleE Kind = "zbdongle-e"
	KindConBee    Kind = "conbee"
	KindSLZB06    Kind = "slzb-06"
	KindEFR32     Kind = "efr32"
	KindESP32     Kind = "esp32"
	KindUnknown   Kind = "unknown"
)

// Confidence is the tier of a classification result. Lower values sort
// first, so exact identifications beat heuristic ones when the reconciler
// picks a candidate.
type Confidence int

const (
	// ConfidenceExact means the vendor:product pair is in the signature table.
	ConfidenceExact Confidence = iota

	// ConfidenceHeuristic means a descriptive string matched a known marker.
	ConfidenceHeuristic

	// ConfidenceNone means the device is present but unrecognized.
	ConfidenceNone
)

// String returns a human-readable confidence label.
func (c Confidence) String() string {
	switch c {
	case ConfidenceExact:
		return "exact"
	case ConfidenceHeuristic:
		return "heuristic"
	default:
		return "none"
	}
}

// Match pairs a Descriptor with its classification.
type Match struct {
	Descriptor  Descriptor `json:"descriptor"`
	Kind        Kind       `json:"kind"`
	Confidence  Confidence `json:"confidence"`
	Description string     `json:"description"`
}

// SortMatches orders matches by confidence (exact, heuristic, none), ties
// broken by lexical device path. This ordering is what makes the
// reconciler's best-candidate selection deterministic.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence < matches[j].Confidence
		}
		return matches[i].Descriptor.Path < matches[j].Descriptor.Path
	})
}
