// Package gateway manipulates the Zigbee2MQTT configuration file.
//
// The file is owned by Zigbee2MQTT itself and accumulates keys this tool
// knows nothing about (device friendly names, network keys, frontend
// settings). Every operation therefore round-trips the document through a
// generic map so unknown keys survive untouched, and writes are atomic
// (temp file plus rename) so a crash never leaves a half-written file for
// the gateway to choke on.
//
// # Thread Safety
//
// File performs no internal locking. Callers that mutate the same file from
// multiple goroutines must serialize access themselves; the manager does
// this through the store lock.
package gateway
