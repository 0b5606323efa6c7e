package manager

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rocket-home/z2m-manager/internal/audit"
	"github.com/rocket-home/z2m-manager/internal/device"
	"github.com/rocket-home/z2m-manager/internal/envconfig"
	"github.com/rocket-home/z2m-manager/internal/gateway"
	"github.com/rocket-home/z2m-manager/internal/mqtt"
	"github.com/rocket-home/z2m-manager/internal/reconcile"
	"github.com/rocket-home/z2m-manager/internal/stack"
)

// Logger is the narrow logging surface the manager needs. A nil logger in
// Options becomes a no-op.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StackController abstracts the compose controller so tests can fake the
// runtime.
type StackController interface {
	Up(ctx context.Context, cfg envconfig.EnvironmentConfig) error
	Stop(ctx context.Context, cfg envconfig.EnvironmentConfig) error
	Restart(ctx context.Context, cfg envconfig.EnvironmentConfig) error
	Down(ctx context.Context, cfg envconfig.EnvironmentConfig) error
	DownWithVolumes(ctx context.Context, cfg envconfig.EnvironmentConfig) error
	Pull(ctx context.Context, cfg envconfig.EnvironmentConfig) error
	Status(ctx context.Context, cfg envconfig.EnvironmentConfig) ([]stack.ServiceStatus, error)
	Logs(ctx context.Context, cfg envconfig.EnvironmentConfig, service string, follow bool) (io.ReadCloser, error)
}

// Prober and JoinPublisher mirror the mqtt package entry points; they are
// injectable so manager tests never dial a broker.
type (
	Prober        func(ctx context.Context, opts mqtt.Options) mqtt.Result
	JoinPublisher func(ctx context.Context, opts mqtt.Options, baseTopic string, enable bool, window time.Duration) error
)

// Options wires a Manager. Store and Controller are required.
type Options struct {
	Store      *envconfig.Store
	Controller StackController

	// Enumerator defaults to the real /dev scan.
	Enumerator *device.Enumerator

	// Gateway defaults to a File bound to the store's gateway config path.
	Gateway *gateway.File

	// Audit is optional; nil disables history.
	Audit audit.Repository

	// Probe and PermitJoin default to the mqtt package functions.
	Probe      Prober
	PermitJoin JoinPublisher

	Logger Logger
}

// Manager implements the presentation-layer contract.
type Manager struct {
	store      *envconfig.Store
	enumerator *device.Enumerator
	controller StackController
	gw         *gateway.File
	history    audit.Repository
	probe      Prober
	permitJoin JoinPublisher
	log        Logger
}

// New builds a Manager from opts.
func New(opts Options) *Manager {
	m := &Manager{
		store:      opts.Store,
		enumerator: opts.Enumerator,
		controller: opts.Controller,
		gw:         opts.Gateway,
		history:    opts.Audit,
		probe:      opts.Probe,
		permitJoin: opts.PermitJoin,
		log:        opts.Logger,
	}
	if m.enumerator == nil {
		m.enumerator = &device.Enumerator{}
	}
	if m.gw == nil {
		m.gw = gateway.NewFile(m.store.GatewayConfigPath())
	}
	if m.probe == nil {
		m.probe = mqtt.Probe
	}
	if m.permitJoin == nil {
		m.permitJoin = mqtt.PermitJoin
	}
	if m.log == nil {
		m.log = noopLogger{}
	}
	return m
}

// ReconcileResult is the structured outcome of one reconcile-and-apply
// cycle.
type ReconcileResult struct {
	// Plan is what this run decided to do; empty when everything already
	// matched.
	Plan reconcile.Plan `json:"plan"`

	// Matches are the classified adapters seen during the run.
	Matches []device.Match `json:"matches"`

	// Config is the configuration after applying the plan.
	Config envconfig.EnvironmentConfig `json:"config"`

	// Fresh is true when no environment file existed before this run.
	Fresh bool `json:"fresh"`
}

// ReconcileAndApply runs one full cycle under the store lock: load,
// enumerate, classify, plan, apply, save. The lock is released on every
// exit path.
func (m *Manager) ReconcileAndApply(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	unlock, err := m.store.Lock(ctx)
	if err != nil {
		return res, err
	}
	defer unlock()

	cfg, fresh, err := m.store.Load()
	if err != nil {
		return res, err
	}
	res.Fresh = fresh

	descriptors, err := m.enumerator.Enumerate(ctx)
	if err != nil {
		return res, err
	}
	matches := device.ClassifyAll(descriptors)
	device.SortMatches(matches)
	res.Matches = matches

	plan := reconcile.Reconcile(cfg, matches, reconcile.Inputs{
		FreshRun:         fresh,
		MissingTemplates: m.missingTemplates(),
		GatewaySerial:    m.gatewaySerial(),
	})
	res.Plan = plan

	if plan.NoDevice {
		m.log.Warn("no adapter present and none configured")
	}

	if err := reconcile.Apply(ctx, plan, &cfg, m.store, m.gw); err != nil {
		return res, err
	}
	if err := m.store.Save(cfg); err != nil {
		return res, err
	}
	res.Config = cfg

	m.log.Info("reconcile complete",
		"fresh", fresh, "intents", len(plan.Intents), "no_device", plan.NoDevice)
	m.record(ctx, audit.ActionReconcile, map[string]any{
		"intents":   len(plan.Intents),
		"no_device": plan.NoDevice,
		"device":    cfg.ZigbeeDevice,
	})

	return res, nil
}

// ListDevices enumerates and classifies the currently attached adapters,
// best candidates first. It touches no configuration.
func (m *Manager) ListDevices(ctx context.Context) ([]device.Match, error) {
	descriptors, err := m.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	matches := device.ClassifyAll(descriptors)
	device.SortMatches(matches)
	return matches, nil
}

// CurrentStatus reports every configured service. A runtime failure still
// yields one entry per service, alongside the error.
func (m *Manager) CurrentStatus(ctx context.Context) ([]stack.ServiceStatus, error) {
	cfg, _, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return m.controller.Status(ctx, cfg)
}

// SetField applies one explicit user-driven change under the store lock.
// Secrets set this way do overwrite, unlike template defaults. Cloud
// bridge fields additionally rewrite the mosquitto bridge file so the
// change takes effect on the next broker restart.
func (m *Manager) SetField(ctx context.Context, name, value string) error {
	unlock, err := m.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.store.SetField(name, value); err != nil {
		return err
	}
	if envconfig.IsCloudField(name) {
		// The bridge file renders cloud settings; a stale one keeps
		// mosquitto bridging with the old values.
		cfg, _, err := m.store.Load()
		if err != nil {
			return err
		}
		if err := m.store.RegenerateBridgeConf(cfg); err != nil {
			return err
		}
	}
	m.log.Info("field updated", "field", name)
	m.record(ctx, audit.ActionSetField, map[string]any{"field": name})
	return nil
}

// Start reconciles first, so a freshly plugged adapter or a missing file
// is handled before the containers come up.
func (m *Manager) Start(ctx context.Context) (ReconcileResult, error) {
	res, err := m.ReconcileAndApply(ctx)
	if err != nil {
		return res, err
	}
	if err := m.controller.Up(ctx, res.Config); err != nil {
		return res, err
	}
	m.record(ctx, audit.ActionStart, nil)
	return res, nil
}

// Stop halts the stack without touching configuration.
func (m *Manager) Stop(ctx context.Context) error {
	cfg, _, err := m.store.Load()
	if err != nil {
		return err
	}
	if err := m.controller.Stop(ctx, cfg); err != nil {
		return err
	}
	m.record(ctx, audit.ActionStop, nil)
	return nil
}

// Restart reconciles first and then recreates the containers, so a changed
// adapter path reaches the gateway.
func (m *Manager) Restart(ctx context.Context) (ReconcileResult, error) {
	res, err := m.ReconcileAndApply(ctx)
	if err != nil {
		return res, err
	}
	if err := m.controller.Restart(ctx, res.Config); err != nil {
		return res, err
	}
	m.record(ctx, audit.ActionRestart, nil)
	return res, nil
}

// Down stops and removes the containers. With removeVolumes true the named
// volumes go too, which erases broker state and the gateway's pairing
// database.
func (m *Manager) Down(ctx context.Context, removeVolumes bool) error {
	cfg, _, err := m.store.Load()
	if err != nil {
		return err
	}
	down := m.controller.Down
	if removeVolumes {
		down = m.controller.DownWithVolumes
	}
	if err := down(ctx, cfg); err != nil {
		return err
	}
	m.record(ctx, audit.ActionDown, map[string]any{"volumes": removeVolumes})
	return nil
}

// Pull fetches the latest service images without touching running
// containers.
func (m *Manager) Pull(ctx context.Context) error {
	cfg, _, err := m.store.Load()
	if err != nil {
		return err
	}
	if err := m.controller.Pull(ctx, cfg); err != nil {
		return err
	}
	m.record(ctx, audit.ActionPull, nil)
	return nil
}

// StreamLogs returns a live reader over service logs; empty service means
// all of them. Cancelling ctx or closing the reader stops the stream.
func (m *Manager) StreamLogs(ctx context.Context, service string, follow bool) (io.ReadCloser, error) {
	cfg, _, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return m.controller.Logs(ctx, cfg, service, follow)
}

// TestMQTT probes the broker with the stored credentials.
func (m *Manager) TestMQTT(ctx context.Context) (mqtt.Result, error) {
	cfg, _, err := m.store.Load()
	if err != nil {
		return mqtt.Result{}, err
	}
	return m.probe(ctx, mqtt.Options{
		Username: cfg.MQTTUser,
		Password: cfg.MQTTPassword,
	}), nil
}

// PermitJoin toggles the gateway's join window. With persist false the
// toggle goes over MQTT to the running gateway; with persist true it is
// written into the gateway configuration as the startup value, which takes
// effect on the next restart.
func (m *Manager) PermitJoin(ctx context.Context, enable bool, window time.Duration, persist bool) error {
	if persist {
		unlock, err := m.store.Lock(ctx)
		if err != nil {
			return err
		}
		defer unlock()

		if err := m.gw.SetPermitJoin(enable); err != nil {
			return fmt.Errorf("persisting permit_join: %w", err)
		}
		m.log.Info("permit_join persisted", "enable", enable)
		return nil
	}

	cfg, _, err := m.store.Load()
	if err != nil {
		return err
	}
	opts := mqtt.Options{Username: cfg.MQTTUser, Password: cfg.MQTTPassword}
	if err := m.permitJoin(ctx, opts, m.gw.BaseTopic(), enable, window); err != nil {
		return fmt.Errorf("toggling permit_join: %w", err)
	}
	m.log.Info("permit_join toggled", "enable", enable)
	return nil
}

// History returns the most recent recorded actions, newest first. Without
// an audit repository it returns nothing.
func (m *Manager) History(ctx context.Context, limit int) ([]audit.Entry, error) {
	if m.history == nil {
		return nil, nil
	}
	return m.history.List(ctx, limit)
}

func (m *Manager) missingTemplates() []string {
	var missing []string
	for _, path := range []string{m.store.BridgeConfPath(), m.store.GatewayConfigPath()} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			missing = append(missing, path)
		}
	}
	return missing
}

func (m *Manager) gatewaySerial() string {
	port, err := m.gw.SerialPort()
	if err != nil {
		return ""
	}
	return port
}

// record stores a history entry; failures are logged, never fatal.
func (m *Manager) record(ctx context.Context, action string, details map[string]any) {
	if m.history == nil {
		return
	}
	err := m.history.Record(ctx, &audit.Entry{Action: action, Details: details})
	if err != nil {
		m.log.Warn("recording action history failed", "action", action, "error", err)
	}
}
