package stack

import (
	"bytes"
	"encoding/json"
)

// Service states as reported by the runtime. StateUnknown stands in when
// the runtime could not be asked.
const (
	StateRunning = "running"
	StateExited  = "exited"
	StateUnknown = "unknown"
)

// ServiceStatus is one service's view in a status listing. Status always
// yields one entry per configured service, so a presentation layer can
// render a complete table even when the runtime is unreachable.
type ServiceStatus struct {
	Service string `json:"service"`
	State   string `json:"state"`
	Health  string `json:"health,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Running reports whether the service is up.
func (s ServiceStatus) Running() bool {
	return s.State == StateRunning
}

// psEntry mirrors the fields of `compose ps --format json` output this
// tool cares about.
type psEntry struct {
	Service string `json:"Service"`
	Name    string `json:"Name"`
	State   string `json:"State"`
	Health  string `json:"Health"`
	Status  string `json:"Status"`
}

// parsePSOutput decodes compose ps JSON. Newer compose emits one object
// per line, older releases a single array; both are accepted. Undecodable
// lines are skipped rather than failing the whole listing.
func parsePSOutput(out []byte) []psEntry {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var entries []psEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil
		}
		return entries
	}

	var entries []psEntry
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e psEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
