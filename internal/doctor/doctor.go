// Package doctor runs host readiness checks: is the container runtime
// there, can this user talk to it and to serial devices, are the stack's
// ports free, is an adapter plugged in. Every check produces a result;
// one failing probe never hides the others.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rocket-home/z2m-manager/internal/device"
	"github.com/rocket-home/z2m-manager/internal/stack"
)

const (
	checkTimeout = 10 * time.Second

	// DefaultUdevRulePath is where the adapter alias rule is installed.
	DefaultUdevRulePath = "/etc/udev/rules.d/99-zigbee.rules"
)

// stackPorts are the host ports the compose stack publishes.
var stackPorts = []struct {
	port int
	name string
}{
	{1883, "MQTT"},
	{1880, "NodeRED"},
	{4000, "Z2M frontend"},
}

// Check is the outcome of one readiness probe. Hint is a concrete next
// step, only set on failure.
type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Options configures a Doctor. Zero values select the real host.
type Options struct {
	// Runner executes probe commands. Defaults to stack.ExecRunner.
	Runner stack.Runner

	// Enumerator discovers serial adapters. Defaults to the real /dev scan.
	Enumerator *device.Enumerator

	// UdevRulePath overrides DefaultUdevRulePath.
	UdevRulePath string
}

// Doctor runs the readiness checks.
type Doctor struct {
	runner     stack.Runner
	enumerator *device.Enumerator
	udevRule   string
}

// New builds a Doctor from opts.
func New(opts Options) *Doctor {
	d := &Doctor{
		runner:     opts.Runner,
		enumerator: opts.Enumerator,
		udevRule:   opts.UdevRulePath,
	}
	if d.runner == nil {
		d.runner = stack.ExecRunner{}
	}
	if d.enumerator == nil {
		d.enumerator = &device.Enumerator{}
	}
	if d.udevRule == "" {
		d.udevRule = DefaultUdevRulePath
	}
	return d
}

// Run executes every check and returns all results, failures included.
func (d *Doctor) Run(ctx context.Context) []Check {
	return []Check{
		d.checkDocker(ctx),
		d.checkDockerDaemon(ctx),
		d.checkCompose(ctx),
		d.checkGroup(ctx, "docker", "sudo usermod -aG docker $USER && newgrp docker"),
		d.checkGroup(ctx, "dialout", "sudo usermod -aG dialout $USER, then log in again"),
		d.checkUdevRules(),
		d.checkPorts(ctx),
		d.checkAdapters(ctx),
	}
}

func (d *Doctor) run(ctx context.Context, name string, args ...string) (string, string, error) {
	runCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	stdout, stderr, err := d.runner.Run(runCtx, "", os.Environ(), name, args...)
	return strings.TrimSpace(string(stdout)), strings.TrimSpace(string(stderr)), err
}

func (d *Doctor) checkDocker(ctx context.Context) Check {
	out, _, err := d.run(ctx, "docker", "--version")
	if err != nil {
		return Check{
			Name:    "docker",
			Message: "not found",
			Hint:    "install Docker: curl -fsSL https://get.docker.com | sh",
		}
	}
	version := strings.TrimPrefix(out, "Docker version ")
	if i := strings.IndexByte(version, ','); i >= 0 {
		version = version[:i]
	}
	return Check{Name: "docker", OK: true, Message: "v" + version}
}

func (d *Doctor) checkDockerDaemon(ctx context.Context) Check {
	_, stderr, err := d.run(ctx, "docker", "info")
	if err == nil {
		return Check{Name: "docker daemon", OK: true, Message: "running"}
	}
	if strings.Contains(strings.ToLower(stderr), "permission denied") {
		return Check{
			Name:    "docker daemon",
			Message: "permission denied",
			Hint:    "add yourself to the docker group, or run with sudo",
		}
	}
	return Check{
		Name:    "docker daemon",
		Message: "not running",
		Hint:    "start it: sudo systemctl start docker",
	}
}

func (d *Doctor) checkCompose(ctx context.Context) Check {
	if out, _, err := d.run(ctx, "docker-compose", "--version"); err == nil {
		return Check{Name: "compose", OK: true, Message: composeVersion(out)}
	}
	if out, _, err := d.run(ctx, "docker", "compose", "version"); err == nil {
		return Check{Name: "compose", OK: true, Message: composeVersion(out) + " (plugin)"}
	}
	return Check{
		Name:    "compose",
		Message: "not found",
		Hint:    "install it: sudo apt install docker-compose-plugin",
	}
}

func composeVersion(out string) string {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "unknown version"
	}
	return "v" + strings.TrimPrefix(fields[len(fields)-1], "v")
}

func (d *Doctor) checkGroup(ctx context.Context, group, hint string) Check {
	name := group + " group"
	out, _, err := d.run(ctx, "groups")
	if err != nil {
		return Check{Name: name, Message: fmt.Sprintf("cannot list groups: %v", err), Hint: hint}
	}
	for _, g := range strings.Fields(out) {
		if g == group {
			return Check{Name: name, OK: true, Message: "member"}
		}
	}
	return Check{Name: name, Message: "not a member", Hint: hint}
}

func (d *Doctor) checkUdevRules() Check {
	if _, err := os.Stat(d.udevRule); err == nil {
		return Check{Name: "udev rules", OK: true, Message: "installed"}
	}
	return Check{
		Name:    "udev rules",
		Message: "not installed",
		Hint:    "copy 99-zigbee.rules to /etc/udev/rules.d/ and run sudo udevadm control --reload-rules",
	}
}

func (d *Doctor) checkPorts(ctx context.Context) Check {
	var occupied []string
	var free []string
	for _, p := range stackPorts {
		out, _, err := d.run(ctx, "ss", "-tlnp", fmt.Sprintf("sport = :%d", p.port))
		if err == nil && strings.Contains(out, "LISTEN") {
			occupied = append(occupied, fmt.Sprintf("%d (%s)", p.port, p.name))
			continue
		}
		free = append(free, fmt.Sprintf("%d", p.port))
	}
	if len(occupied) > 0 {
		return Check{
			Name:    "ports",
			Message: "occupied: " + strings.Join(occupied, ", "),
			Hint:    "stop whatever listens there, or change the stack's port mapping",
		}
	}
	return Check{Name: "ports", OK: true, Message: strings.Join(free, ", ") + " free"}
}

func (d *Doctor) checkAdapters(ctx context.Context) Check {
	descriptors, err := d.enumerator.Enumerate(ctx)
	if err != nil {
		if errors.Is(err, device.ErrScanUnavailable) {
			return Check{
				Name:    "adapters",
				Message: "cannot scan serial devices",
				Hint:    "check read access to /dev and /sys",
			}
		}
		return Check{Name: "adapters", Message: fmt.Sprintf("scan failed: %v", err)}
	}
	if len(descriptors) == 0 {
		return Check{
			Name:    "adapters",
			Message: "none detected",
			Hint:    "plug in the Zigbee USB adapter",
		}
	}

	var known []string
	var unknown []string
	for _, m := range device.ClassifyAll(descriptors) {
		if m.Confidence == device.ConfidenceNone {
			unknown = append(unknown, m.Descriptor.Path)
		} else {
			known = append(known, m.Descriptor.Path)
		}
	}
	if len(known) > 0 {
		return Check{Name: "adapters", OK: true, Message: "found: " + strings.Join(known, ", ")}
	}
	return Check{
		Name:    "adapters",
		OK:      true,
		Message: "found (not recognized as Zigbee): " + strings.Join(unknown, ", "),
		Hint:    "verify the plugged device is actually a Zigbee adapter",
	}
}
