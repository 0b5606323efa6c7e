package envconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Managed .env keys, in the canonical order missing keys are appended in.
const (
	keyMQTTUser      = "MQTT_USER"
	keyMQTTPassword  = "MQTT_PASSWORD"
	keyZigbeeDevice  = "ZIGBEE_DEVICE"
	keyNodeRED       = "NODERED_ENABLED"
	keyCloudHost     = "CLOUD_MQTT_HOST"
	keyCloudUser     = "CLOUD_MQTT_USER"
	keyCloudPassword = "CLOUD_MQTT_PASSWORD"
	keyCloudEnabled  = "CLOUD_MQTT_ENABLED"
	keyCloudProtocol = "CLOUD_MQTT_PROTOCOL"
)

var orderedKeys = []string{
	keyMQTTUser,
	keyMQTTPassword,
	keyZigbeeDevice,
	keyNodeRED,
	keyCloudHost,
	keyCloudUser,
	keyCloudPassword,
	keyCloudEnabled,
	keyCloudProtocol,
}

// secretKeys never have a non-empty persisted value replaced by an empty
// incoming one during Save.
var secretKeys = map[string]bool{
	keyMQTTPassword:  true,
	keyCloudPassword: true,
}

// filePermissions is the mode for the .env file: it carries credentials.
const filePermissions = 0o600

// envLineRe matches a KEY=VALUE line, capturing the key.
var envLineRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*?)\s*$`)

// Store reads and writes the environment configuration rooted at a stack
// base directory (the directory containing docker-compose.yml).
type Store struct {
	baseDir string
}

// NewStore creates a store for the given stack base directory.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// BaseDir returns the stack base directory.
func (s *Store) BaseDir() string { return s.baseDir }

// EnvPath returns the path of the backing .env file.
func (s *Store) EnvPath() string { return filepath.Join(s.baseDir, ".env") }

// BridgeConfPath returns the path of the mosquitto cloud-bridge file.
func (s *Store) BridgeConfPath() string {
	return filepath.Join(s.baseDir, "mosquitto", "conf.d", "bridge.conf")
}

// GatewayConfigPath returns the path of the zigbee2mqtt configuration file.
func (s *Store) GatewayConfigPath() string {
	return filepath.Join(s.baseDir, "zigbee2mqtt.yaml")
}

// Load reads the .env file into a typed configuration.
//
// A missing file is not an error: defaults are returned and fresh is true,
// which is what tells the reconciler a first run is happening. An existing
// but undecodable file returns ErrConfigCorrupt and is left untouched.
// Unparsable individual lines are skipped here and preserved on Save.
func (s *Store) Load() (cfg EnvironmentConfig, fresh bool, err error) {
	cfg = Default()

	data, err := os.ReadFile(s.EnvPath())
	if os.IsNotExist(err) {
		return cfg, true, nil
	}
	if err != nil {
		return cfg, false, fmt.Errorf("reading %s: %w", s.EnvPath(), err)
	}
	if !utf8.Valid(data) || strings.ContainsRune(string(data), 0) {
		return cfg, false, fmt.Errorf("%w: %s is not valid text", ErrConfigCorrupt, s.EnvPath())
	}

	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := envLineRe.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		applyKey(&cfg, m[1], unquote(m[2]))
	}

	return cfg, false, nil
}

// applyKey sets one managed key on the configuration; unknown keys are
// ignored (they still round-trip through Save untouched).
func applyKey(cfg *EnvironmentConfig, key, value string) {
	switch key {
	case keyMQTTUser:
		cfg.MQTTUser = value
	case keyMQTTPassword:
		cfg.MQTTPassword = value
	case keyZigbeeDevice:
		cfg.ZigbeeDevice = value
	case keyNodeRED:
		cfg.NodeREDEnabled = parseBool(value)
	case keyCloudHost:
		cfg.CloudHost = value
	case keyCloudUser:
		cfg.CloudUser = value
	case keyCloudPassword:
		cfg.CloudPassword = value
	case keyCloudEnabled:
		cfg.CloudEnabled = parseBool(value)
	case keyCloudProtocol:
		cfg.CloudProtocol = normalizeProtocol(value)
	}
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, `"`)
	return strings.Trim(v, `'`)
}

// Save writes the configuration back to the .env file.
//
// The existing file text is merged, not regenerated: comments, blank lines
// and unknown keys are preserved byte-identical, the first occurrence of
// each managed key is updated in place, and missing managed keys are
// appended in canonical order. The write is atomic (temp + rename).
func (s *Store) Save(cfg EnvironmentConfig) error {
	updates := s.updatesFor(cfg)

	existing, err := os.ReadFile(s.EnvPath())
	if err != nil && !os.IsNotExist(err) {
		return &ApplyError{Path: s.EnvPath(), Op: "read", Err: err}
	}

	merged := mergeEnvLines(string(existing), updates, orderedKeys)
	return s.writeAtomic(s.EnvPath(), []byte(strings.Join(merged, "\n")+"\n"))
}

// updatesFor converts the typed config into managed key updates, enforcing
// the secret no-clobber rule against the values currently on disk.
func (s *Store) updatesFor(cfg EnvironmentConfig) map[string]string {
	updates := map[string]string{
		keyMQTTUser:      cfg.MQTTUser,
		keyMQTTPassword:  cfg.MQTTPassword,
		keyZigbeeDevice:  cfg.ZigbeeDevice,
		keyNodeRED:       formatBool(cfg.NodeREDEnabled),
		keyCloudHost:     cfg.CloudHost,
		keyCloudUser:     cfg.CloudUser,
		keyCloudPassword: cfg.CloudPassword,
		keyCloudEnabled:  formatBool(cfg.CloudEnabled),
		keyCloudProtocol: normalizeProtocol(cfg.CloudProtocol),
	}

	persisted := s.rawValues()
	for key := range secretKeys {
		if updates[key] == "" && persisted[key] != "" {
			delete(updates, key)
		}
	}
	return updates
}

// rawValues returns the current on-disk KEY=VALUE pairs without typing.
func (s *Store) rawValues() map[string]string {
	values := make(map[string]string)
	data, err := os.ReadFile(s.EnvPath())
	if err != nil {
		return values
	}
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := envLineRe.FindStringSubmatch(raw); m != nil {
			if _, seen := values[m[1]]; !seen {
				values[m[1]] = unquote(m[2])
			}
		}
	}
	return values
}

// mergeEnvLines merges updates into existing .env text. Only the first
// occurrence of a managed key is rewritten; everything else passes through
// untouched. Missing keys are appended at the end in ordered-key order.
func mergeEnvLines(existing string, updates map[string]string, ordered []string) []string {
	var lines []string
	if existing != "" {
		lines = strings.Split(strings.TrimRight(existing, "\n"), "\n")
	}

	seen := make(map[string]bool)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := envLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := m[1]
		if value, ok := updates[key]; ok && !seen[key] {
			lines[i] = key + "=" + value
			seen[key] = true
		}
	}

	var toAdd []string
	for _, key := range ordered {
		if value, ok := updates[key]; ok && !seen[key] {
			toAdd = append(toAdd, key+"="+value)
		}
	}
	if len(toAdd) > 0 {
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, toAdd...)
	}

	return lines
}

// SetField applies one explicit user-driven mutation and persists it.
// This is the only path that may overwrite a non-empty secret. Field names
// are the managed .env keys, matched case-insensitively.
func (s *Store) SetField(name, value string) error {
	key, ok := canonicalKey(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	cfg, _, err := s.Load()
	if err != nil {
		return err
	}
	applyKey(&cfg, key, value)

	if secretKeys[key] {
		// Explicit set bypasses no-clobber, including setting to empty.
		return s.saveWithSecret(cfg, key, value)
	}
	return s.Save(cfg)
}

// saveWithSecret is Save with the no-clobber exception for one key.
func (s *Store) saveWithSecret(cfg EnvironmentConfig, key, value string) error {
	updates := s.updatesFor(cfg)
	updates[key] = value

	existing, err := os.ReadFile(s.EnvPath())
	if err != nil && !os.IsNotExist(err) {
		return &ApplyError{Path: s.EnvPath(), Op: "read", Err: err}
	}
	merged := mergeEnvLines(string(existing), updates, orderedKeys)
	return s.writeAtomic(s.EnvPath(), []byte(strings.Join(merged, "\n")+"\n"))
}

// IsCloudField reports whether name resolves to one of the cloud bridge
// keys. Changing any of them must be followed by RegenerateBridgeConf, or
// the mosquitto bridge file keeps serving the old settings.
func IsCloudField(name string) bool {
	key, ok := canonicalKey(name)
	return ok && strings.HasPrefix(key, "CLOUD_")
}

// canonicalKey resolves a user-supplied field name to a managed key.
func canonicalKey(name string) (string, bool) {
	upper := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for _, key := range orderedKeys {
		if key == upper {
			return key, true
		}
	}
	return "", false
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by rename, so readers never observe a partial file.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &ApplyError{Path: path, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return &ApplyError{Path: path, Op: "create temp", Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &ApplyError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &ApplyError{Path: path, Op: "chmod", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &ApplyError{Path: path, Op: "close", Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &ApplyError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
