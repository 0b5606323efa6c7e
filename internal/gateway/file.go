package gateway

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseTopic is the topic prefix Zigbee2MQTT uses when the
	// configuration does not name one.
	DefaultBaseTopic = "zigbee2mqtt"

	devicesFileName = "zigbee2mqtt.devices.yaml"

	fileMode = 0o600
)

// File provides read and edit operations on a Zigbee2MQTT configuration
// file. The zero value is not usable; construct with NewFile.
type File struct {
	path string
}

// NewFile binds a File to the configuration at path. The file does not need
// to exist yet; read operations fall back to Zigbee2MQTT defaults and edit
// operations fail until it does.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the bound configuration file path.
func (f *File) Path() string {
	return f.path
}

// BaseTopic returns the MQTT topic prefix the gateway publishes under,
// or DefaultBaseTopic when the file is absent or does not set one.
func (f *File) BaseTopic() string {
	doc, err := f.load()
	if err != nil {
		return DefaultBaseTopic
	}
	mqtt, ok := doc["mqtt"].(map[string]any)
	if !ok {
		return DefaultBaseTopic
	}
	topic, ok := mqtt["base_topic"].(string)
	if !ok || topic == "" {
		return DefaultBaseTopic
	}
	return topic
}

// SerialPort returns the adapter path the gateway is configured to open,
// or the empty string when none is set.
func (f *File) SerialPort() (string, error) {
	doc, err := f.load()
	if err != nil {
		return "", err
	}
	serial, ok := doc["serial"].(map[string]any)
	if !ok {
		return "", nil
	}
	port, _ := serial["port"].(string)
	return port, nil
}

// SetSerialPort updates serial.port, creating the serial section if the
// file lacks one. Every other key in the document is preserved.
func (f *File) SetSerialPort(port string) error {
	return f.edit(func(doc map[string]any) error {
		subMap(doc, "serial")["port"] = port
		return nil
	})
}

// PermitJoin reports whether the configuration has joining enabled at
// startup. Absent key means disabled.
func (f *File) PermitJoin() (bool, error) {
	doc, err := f.load()
	if err != nil {
		return false, err
	}
	enabled, _ := doc["permit_join"].(bool)
	return enabled, nil
}

// SetPermitJoin writes the startup permit_join flag. This only affects the
// next gateway start; use the MQTT request topic to toggle a running one.
func (f *File) SetPermitJoin(enabled bool) error {
	return f.edit(func(doc map[string]any) error {
		doc["permit_join"] = enabled
		return nil
	})
}

// Devices returns the paired-device table regardless of whether it is
// stored inline or split into a separate file. A missing table is an empty
// map, not an error.
func (f *File) Devices() (map[string]any, error) {
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	switch v := doc["devices"].(type) {
	case map[string]any:
		return v, nil
	case string:
		return f.loadReferenced(v)
	default:
		return map[string]any{}, nil
	}
}

// SplitDevices moves an inline devices table into a sibling file and
// rewrites the configuration to reference it, the layout Zigbee2MQTT
// recommends once the table grows. Already-split or empty configurations
// are left alone. The CLI does not expose this; it exists for presentation
// layers that manage the gateway's file layout directly.
func (f *File) SplitDevices() error {
	doc, err := f.load()
	if err != nil {
		return err
	}
	devices, ok := doc["devices"].(map[string]any)
	if !ok || len(devices) == 0 {
		return nil
	}
	devPath := filepath.Join(filepath.Dir(f.path), devicesFileName)
	if err := writeYAML(devPath, devices); err != nil {
		return err
	}
	doc["devices"] = devicesFileName
	return writeYAML(f.path, doc)
}

// MergeDevices folds a split devices file back into the main document and
// removes the sibling file. Inline configurations are left alone. Like
// SplitDevices it is for presentation layers managing the file layout.
func (f *File) MergeDevices() error {
	doc, err := f.load()
	if err != nil {
		return err
	}
	ref, ok := doc["devices"].(string)
	if !ok {
		return nil
	}
	devices, err := f.loadReferenced(ref)
	if err != nil {
		return err
	}
	doc["devices"] = devices
	if err := writeYAML(f.path, doc); err != nil {
		return err
	}
	devPath := filepath.Join(filepath.Dir(f.path), ref)
	if err := os.Remove(devPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("gateway: removing %s: %w", devPath, err)
	}
	return nil
}

func (f *File) edit(mutate func(map[string]any) error) error {
	doc, err := f.load()
	if err != nil {
		return err
	}
	if err := mutate(doc); err != nil {
		return err
	}
	return writeYAML(f.path, doc)
}

func (f *File) load() (map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("gateway: reading %s: %w", f.path, err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigCorrupt, f.path, err)
	}
	return doc, nil
}

func (f *File) loadReferenced(name string) (map[string]any, error) {
	devPath := filepath.Join(filepath.Dir(f.path), name)
	data, err := os.ReadFile(devPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("gateway: reading %s: %w", devPath, err)
	}
	devices := map[string]any{}
	if err := yaml.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigCorrupt, devPath, err)
	}
	return devices, nil
}

func writeYAML(path string, doc any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("gateway: encoding %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-gateway-*")
	if err != nil {
		return fmt.Errorf("gateway: creating temp file for %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("gateway: writing %s: %w", path, err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("gateway: setting mode on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("gateway: closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("gateway: replacing %s: %w", path, err)
	}
	return nil
}

func subMap(doc map[string]any, key string) map[string]any {
	if m, ok := doc[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	doc[key] = m
	return m
}
