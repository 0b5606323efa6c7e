package reconcile

import (
	"github.com/rocket-home/z2m-manager/internal/device"
	"github.com/rocket-home/z2m-manager/internal/envconfig"
)

// Inputs is the disk-state snapshot Reconcile plans against. The caller
// gathers it so that planning itself stays pure.
type Inputs struct {
	// FreshRun is true when no environment file existed before this run.
	FreshRun bool

	// MissingTemplates lists template-backed file paths absent on disk.
	MissingTemplates []string

	// GatewaySerial is the adapter path currently written in the gateway
	// configuration, empty when the file is absent or sets none.
	GatewaySerial string
}

// Reconcile computes the plan that brings disk state in line with the
// discovered hardware. It mutates nothing.
func Reconcile(cfg envconfig.EnvironmentConfig, matches []device.Match, in Inputs) Plan {
	var plan Plan

	selected := cfg.ZigbeeDevice
	switch {
	case deviceIsPresent(cfg.ZigbeeDevice, matches):
		// The user's configured adapter is plugged in. Keep it even if a
		// higher-confidence match showed up alongside.
	case len(matches) > 0:
		best := bestCandidate(matches)
		selected = best.Descriptor.PreferredPath()
		if selected != cfg.ZigbeeDevice {
			plan.add(IntentSetDevice, selected)
		}
	default:
		selected = ""
		plan.NoDevice = true
	}

	if in.FreshRun && cfg.MQTTPassword == "" {
		plan.add(IntentGenerateSecret, "")
	}

	for _, path := range in.MissingTemplates {
		plan.add(IntentMaterializeTemplate, path)
	}

	if selected != "" && in.GatewaySerial != selected {
		plan.add(IntentUpdateGatewaySerial, selected)
	}

	return plan
}

// bestCandidate returns the first match under the confidence-then-path
// ordering without disturbing the caller's slice.
func bestCandidate(matches []device.Match) device.Match {
	ordered := make([]device.Match, len(matches))
	copy(ordered, matches)
	device.SortMatches(ordered)
	return ordered[0]
}

// deviceIsPresent reports whether the configured path names one of the
// enumerated descriptors, under any of its aliases.
func deviceIsPresent(path string, matches []device.Match) bool {
	if path == "" {
		return false
	}
	for _, m := range matches {
		d := m.Descriptor
		if path == d.Path || path == d.ByIDPath {
			return true
		}
	}
	return false
}
