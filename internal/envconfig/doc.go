// Package envconfig manages the persisted environment configuration of the
// container stack: the .env file consumed by compose plus the adjacent
// template-backed files (mosquitto bridge.conf, zigbee2mqtt.yaml).
//
// The .env file is the single source of truth on disk. The store applies a
// three-way merge on save:
//   - template defaults fill fields never set
//   - unknown keys, comments and blank lines in the existing file pass
//     through byte-identical
//   - secret fields, once non-empty on disk, are never replaced by an empty
//     incoming value; only an explicit SetField call overwrites them
//
// Writes are atomic (temp file in the same directory, then rename) so a
// crash can never leave a half-written configuration behind.
//
// Concurrency:
//   - Save is atomic per file, but logical read-modify-write sequences must
//     be serialized by the caller via Lock/Unlock, which uses an exclusive
//     lock file with stale-PID takeover.
package envconfig
