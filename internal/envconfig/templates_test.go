package envconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaterializeTemplates_CreatesMissing(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	cfg := Default()
	cfg.MQTTPassword = "pw"

	results, err := s.MaterializeTemplates(cfg)
	if err != nil {
		t.Fatalf("MaterializeTemplates() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if !r.Created {
			t.Errorf("%s: Created = false, want true", r.Path)
		}
		if _, statErr := os.Stat(r.Path); statErr != nil {
			t.Errorf("%s not on disk: %v", r.Path, statErr)
		}
	}

	yamlData, err := os.ReadFile(s.GatewayConfigPath())
	if err != nil {
		t.Fatalf("reading gateway config: %v", err)
	}
	for _, want := range []string{"port: " + DefaultDevicePath, "password: pw", "server: mqtt://mqtt:1883"} {
		if !strings.Contains(string(yamlData), want) {
			t.Errorf("gateway config missing %q:\n%s", want, yamlData)
		}
	}
}

func TestMaterializeTemplates_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	custom := "# hand-tuned, keep me\n"
	if err := os.MkdirAll(filepath.Dir(s.BridgeConfPath()), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(s.BridgeConfPath(), []byte(custom), 0o600); err != nil {
		t.Fatalf("seeding bridge.conf: %v", err)
	}

	results, err := s.MaterializeTemplates(Default())
	if err != nil {
		t.Fatalf("MaterializeTemplates() error = %v", err)
	}
	for _, r := range results {
		if r.Path == s.BridgeConfPath() && r.Created {
			t.Error("bridge.conf reported Created, want skipped")
		}
	}
	got, err := os.ReadFile(s.BridgeConfPath())
	if err != nil {
		t.Fatalf("reading bridge.conf: %v", err)
	}
	if string(got) != custom {
		t.Errorf("bridge.conf was overwritten:\n%s", got)
	}
}

func TestMaterializeTemplates_CloudDisabledCommentsBridge(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	cfg := Default()
	cfg.CloudEnabled = false

	if _, err := s.MaterializeTemplates(cfg); err != nil {
		t.Fatalf("MaterializeTemplates() error = %v", err)
	}
	data, err := os.ReadFile(s.BridgeConfPath())
	if err != nil {
		t.Fatalf("reading bridge.conf: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			t.Errorf("bridge.conf line not commented with cloud disabled: %q", line)
		}
	}
}

func TestMaterializeTemplates_PlaceholdersForMissingCloudCreds(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	cfg := Default()
	cfg.CloudEnabled = true
	cfg.CloudUser = ""
	cfg.CloudPassword = ""

	if _, err := s.MaterializeTemplates(cfg); err != nil {
		t.Fatalf("MaterializeTemplates() error = %v", err)
	}
	data, err := os.ReadFile(s.BridgeConfPath())
	if err != nil {
		t.Fatalf("reading bridge.conf: %v", err)
	}
	if !strings.Contains(string(data), placeholderUser) {
		t.Errorf("bridge.conf missing username placeholder:\n%s", data)
	}
	if !strings.Contains(string(data), placeholderPass) {
		t.Errorf("bridge.conf missing password placeholder:\n%s", data)
	}
}

func TestRegenerateBridgeConf_Overwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	cfg := Default()
	cfg.CloudEnabled = true
	cfg.CloudUser = "bridge-user"
	cfg.CloudPassword = "bridge-pass"

	if _, err := s.MaterializeTemplates(Default()); err != nil {
		t.Fatalf("MaterializeTemplates() error = %v", err)
	}
	if err := s.RegenerateBridgeConf(cfg); err != nil {
		t.Fatalf("RegenerateBridgeConf() error = %v", err)
	}
	data, err := os.ReadFile(s.BridgeConfPath())
	if err != nil {
		t.Fatalf("reading bridge.conf: %v", err)
	}
	if !strings.Contains(string(data), "remote_username bridge-user") {
		t.Errorf("bridge.conf missing new username:\n%s", data)
	}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "#connection") {
		t.Error("bridge.conf still commented after regeneration with cloud enabled")
	}
}
