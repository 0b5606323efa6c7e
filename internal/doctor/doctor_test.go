package doctor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rocket-home/z2m-manager/internal/device"
)

// fakeRunner plays back canned results keyed by the joined command line.
type fakeRunner struct {
	stdout map[string]string
	stderr map[string]string
	errs   map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		stdout: map[string]string{},
		stderr: map[string]string{},
		errs:   map[string]error{},
	}
}

func (f *fakeRunner) Run(_ context.Context, _ string, _ []string, name string, args ...string) ([]byte, []byte, error) {
	k := strings.Join(append([]string{name}, args...), " ")
	return []byte(f.stdout[k]), []byte(f.stderr[k]), f.errs[k]
}

func (f *fakeRunner) Stream(context.Context, string, []string, string, ...string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}

// healthyHost cans the outputs of a machine where everything passes.
func healthyHost(t *testing.T) (*fakeRunner, Options) {
	t.Helper()
	runner := newFakeRunner()
	runner.stdout["docker --version"] = "Docker version 27.1.1, build 6312585"
	runner.stdout["docker info"] = "Server Version: 27.1.1"
	runner.stdout["docker-compose --version"] = "docker-compose version 1.29.2"
	runner.stdout["groups"] = "user docker dialout plugdev"

	rulePath := filepath.Join(t.TempDir(), "99-zigbee.rules")
	if err := os.WriteFile(rulePath, []byte("SUBSYSTEM==\"tty\"\n"), 0o644); err != nil {
		t.Fatalf("writing rule: %v", err)
	}

	return runner, Options{
		Runner:       runner,
		Enumerator:   &device.Enumerator{DevRoot: t.TempDir(), SysRoot: t.TempDir()},
		UdevRulePath: rulePath,
	}
}

func checkByName(t *testing.T, checks []Check, name string) Check {
	t.Helper()
	for _, c := range checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no check named %q in %v", name, checks)
	return Check{}
}

func TestRun_ReturnsEveryCheck(t *testing.T) {
	_, opts := healthyHost(t)
	checks := New(opts).Run(context.Background())

	wantNames := []string{
		"docker", "docker daemon", "compose",
		"docker group", "dialout group",
		"udev rules", "ports", "adapters",
	}
	if len(checks) != len(wantNames) {
		t.Fatalf("len(checks) = %d, want %d", len(checks), len(wantNames))
	}
	for i, name := range wantNames {
		if checks[i].Name != name {
			t.Errorf("checks[%d].Name = %q, want %q", i, checks[i].Name, name)
		}
	}
}

func TestCheckDocker_Version(t *testing.T) {
	_, opts := healthyHost(t)
	c := checkByName(t, New(opts).Run(context.Background()), "docker")

	if !c.OK {
		t.Errorf("docker check failed: %+v", c)
	}
	if c.Message != "v27.1.1" {
		t.Errorf("Message = %q, want v27.1.1", c.Message)
	}
}

func TestCheckDocker_Missing(t *testing.T) {
	runner, opts := healthyHost(t)
	runner.errs["docker --version"] = errors.New("executable file not found")

	c := checkByName(t, New(opts).Run(context.Background()), "docker")
	if c.OK {
		t.Error("docker check passed without docker")
	}
	if c.Hint == "" {
		t.Error("failing check carries no hint")
	}
}

func TestCheckDaemon_PermissionDenied(t *testing.T) {
	runner, opts := healthyHost(t)
	runner.stderr["docker info"] = "permission denied while trying to connect to the docker daemon socket"
	runner.errs["docker info"] = errors.New("exit status 1")

	c := checkByName(t, New(opts).Run(context.Background()), "docker daemon")
	if c.OK {
		t.Error("daemon check passed despite permission error")
	}
	if !strings.Contains(c.Hint, "docker group") {
		t.Errorf("Hint = %q, want group membership advice", c.Hint)
	}
}

func TestCheckCompose_PluginFallback(t *testing.T) {
	runner, opts := healthyHost(t)
	runner.errs["docker-compose --version"] = errors.New("not found")
	runner.stdout["docker compose version"] = "Docker Compose version v2.29.1"

	c := checkByName(t, New(opts).Run(context.Background()), "compose")
	if !c.OK {
		t.Errorf("compose check failed: %+v", c)
	}
	if !strings.Contains(c.Message, "plugin") {
		t.Errorf("Message = %q, want plugin marker", c.Message)
	}
}

func TestCheckGroups(t *testing.T) {
	runner, opts := healthyHost(t)
	runner.stdout["groups"] = "user plugdev"

	checks := New(opts).Run(context.Background())
	if c := checkByName(t, checks, "docker group"); c.OK {
		t.Error("docker group check passed without membership")
	}
	if c := checkByName(t, checks, "dialout group"); c.OK {
		t.Error("dialout group check passed without membership")
	}
}

func TestCheckPorts_Occupied(t *testing.T) {
	runner, opts := healthyHost(t)
	runner.stdout["ss -tlnp sport = :1883"] = "LISTEN 0 128 0.0.0.0:1883"

	c := checkByName(t, New(opts).Run(context.Background()), "ports")
	if c.OK {
		t.Error("ports check passed with 1883 occupied")
	}
	if !strings.Contains(c.Message, "1883 (MQTT)") {
		t.Errorf("Message = %q, want occupied port named", c.Message)
	}
}

func TestCheckUdevRules_Missing(t *testing.T) {
	_, opts := healthyHost(t)
	opts.UdevRulePath = filepath.Join(t.TempDir(), "absent.rules")

	c := checkByName(t, New(opts).Run(context.Background()), "udev rules")
	if c.OK {
		t.Error("udev check passed without rule file")
	}
}

func TestCheckAdapters_NoneDetected(t *testing.T) {
	_, opts := healthyHost(t)

	c := checkByName(t, New(opts).Run(context.Background()), "adapters")
	if c.OK {
		t.Error("adapters check passed with empty /dev")
	}
	if !strings.Contains(c.Hint, "adapter") {
		t.Errorf("Hint = %q, want plug-in advice", c.Hint)
	}
}

func TestRun_OneFailureDoesNotHideOthers(t *testing.T) {
	runner, opts := healthyHost(t)
	runner.errs["docker --version"] = errors.New("not found")
	runner.errs["docker info"] = errors.New("not found")

	checks := New(opts).Run(context.Background())
	if len(checks) != 8 {
		t.Errorf("len(checks) = %d, want all 8 despite failures", len(checks))
	}
	if c := checkByName(t, checks, "compose"); !c.OK {
		t.Errorf("compose check affected by docker failure: %+v", c)
	}
}
