package stack

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rocket-home/z2m-manager/internal/envconfig"
)

// Logger is the narrow logging surface the controller needs. A nil logger
// in Options is replaced with a no-op implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

const (
	composeFileName = "docker-compose.yml"

	// DefaultCommandTimeout bounds mutating verbs; image builds can be slow.
	DefaultCommandTimeout = 10 * time.Minute

	// statusTimeout bounds ps so a hung daemon cannot freeze a status poll.
	statusTimeout = 30 * time.Second

	// DefaultLogTail is how many lines Logs asks for per service.
	DefaultLogTail = 200
)

// Base service names in the compose file. NodeRED joins through its
// compose profile when enabled.
var baseServices = []string{"mqtt", "zigbee2mqtt"}

const nodeREDService = "nodered"

// Options configures a Controller.
type Options struct {
	// BaseDir is the directory holding the compose file; commands run there.
	BaseDir string

	// Runner executes the commands. Defaults to ExecRunner.
	Runner Runner

	// Logger receives verb-level progress. Defaults to a no-op.
	Logger Logger

	// CommandTimeout bounds each mutating verb. Defaults to
	// DefaultCommandTimeout.
	CommandTimeout time.Duration
}

// Controller shells out to docker compose for stack lifecycle operations.
type Controller struct {
	baseDir string
	runner  Runner
	log     Logger
	timeout time.Duration

	// composeCmd is ["docker-compose"] or ["docker", "compose"], resolved
	// once at construction.
	composeCmd []string
}

// NewController builds a Controller and probes which compose flavor the
// host carries. The standalone docker-compose binary wins when present,
// matching long-standing installs; otherwise the docker CLI plugin is used.
func NewController(ctx context.Context, opts Options) *Controller {
	c := &Controller{
		baseDir: opts.BaseDir,
		runner:  opts.Runner,
		log:     opts.Logger,
		timeout: opts.CommandTimeout,
	}
	if c.runner == nil {
		c.runner = ExecRunner{}
	}
	if c.log == nil {
		c.log = noopLogger{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultCommandTimeout
	}
	c.composeCmd = detectComposeCommand(ctx, c.runner)
	c.log.Debug("compose command resolved", "command", c.composeCmd)
	return c
}

func detectComposeCommand(ctx context.Context, runner Runner) []string {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, _, err := runner.Run(probeCtx, "", os.Environ(), "docker-compose", "version"); err == nil {
		return []string{"docker-compose"}
	}
	if _, _, err := runner.Run(probeCtx, "", os.Environ(), "docker", "compose", "version"); err == nil {
		return []string{"docker", "compose"}
	}
	// Neither answered; keep the classic name so later errors name a
	// concrete command the user can install.
	return []string{"docker-compose"}
}

// Up starts (and builds, when needed) the whole stack detached.
func (c *Controller) Up(ctx context.Context, cfg envconfig.EnvironmentConfig) error {
	c.log.Info("starting stack")
	return c.runVerb(ctx, "up", cfg, "up", "-d", "--build")
}

// Stop halts the containers without removing them.
func (c *Controller) Stop(ctx context.Context, cfg envconfig.EnvironmentConfig) error {
	c.log.Info("stopping stack")
	return c.runVerb(ctx, "stop", cfg, "stop")
}

// Restart recreates the containers. A plain compose restart would reuse
// the old container definitions and miss a changed adapter path, so this
// is up with force-recreate.
func (c *Controller) Restart(ctx context.Context, cfg envconfig.EnvironmentConfig) error {
	c.log.Info("restarting stack")
	return c.runVerb(ctx, "restart", cfg, "up", "-d", "--build", "--force-recreate")
}

// Down stops and removes the containers, keeping volumes.
func (c *Controller) Down(ctx context.Context, cfg envconfig.EnvironmentConfig) error {
	c.log.Info("removing stack")
	return c.runVerb(ctx, "down", cfg, "down")
}

// DownWithVolumes removes the containers and their volumes. Destroys the
// gateway's learned network state; callers confirm with the user first.
func (c *Controller) DownWithVolumes(ctx context.Context, cfg envconfig.EnvironmentConfig) error {
	c.log.Warn("removing stack with volumes")
	return c.runVerb(ctx, "down", cfg, "down", "-v")
}

// Pull fetches current images for the configured services.
func (c *Controller) Pull(ctx context.Context, cfg envconfig.EnvironmentConfig) error {
	c.log.Info("pulling images")
	return c.runVerb(ctx, "pull", cfg, "pull")
}

// Status reports every configured service. When the runtime itself cannot
// be asked, each service comes back StateUnknown alongside the error, so a
// caller can still render a complete view.
func (c *Controller) Status(ctx context.Context, cfg envconfig.EnvironmentConfig) ([]ServiceStatus, error) {
	statusCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	name, args := c.command(cfg, "ps", "--all", "--format", "json")
	stdout, stderr, err := c.runner.Run(statusCtx, c.baseDir, composeEnv(cfg), name, args...)

	byService := map[string]psEntry{}
	for _, e := range parsePSOutput(stdout) {
		key := e.Service
		if key == "" {
			key = e.Name
		}
		byService[key] = e
	}

	statuses := make([]ServiceStatus, 0, len(baseServices)+1)
	for _, svc := range c.services(cfg) {
		st := ServiceStatus{Service: svc, State: StateUnknown}
		if e, ok := byService[svc]; ok {
			st.State = e.State
			st.Health = e.Health
			st.Detail = e.Status
		}
		statuses = append(statuses, st)
	}

	if err != nil {
		return statuses, c.commandError("status", stderr, err)
	}
	return statuses, nil
}

// Running reports whether any configured service is up.
func (c *Controller) Running(ctx context.Context, cfg envconfig.EnvironmentConfig) bool {
	statuses, err := c.Status(ctx, cfg)
	if err != nil {
		return false
	}
	for _, st := range statuses {
		if st.Running() {
			return true
		}
	}
	return false
}

// Logs streams log output, optionally following. An empty service streams
// all of them. The returned reader must be closed; cancelling ctx also
// stops the stream.
func (c *Controller) Logs(ctx context.Context, cfg envconfig.EnvironmentConfig, service string, follow bool) (io.ReadCloser, error) {
	logArgs := []string{"logs", fmt.Sprintf("--tail=%d", DefaultLogTail)}
	if follow {
		logArgs = append(logArgs, "--follow")
	}
	if service != "" {
		logArgs = append(logArgs, service)
	}

	name, args := c.command(cfg, logArgs...)
	stream, err := c.runner.Stream(ctx, c.baseDir, composeEnv(cfg), name, args...)
	if err != nil {
		return nil, c.commandError("logs", nil, err)
	}
	return stream, nil
}

// Services lists the service names the configuration enables.
func (c *Controller) Services(cfg envconfig.EnvironmentConfig) []string {
	return c.services(cfg)
}

func (c *Controller) services(cfg envconfig.EnvironmentConfig) []string {
	services := append([]string(nil), baseServices...)
	if cfg.NodeREDEnabled {
		services = append(services, nodeREDService)
	}
	return services
}

// command assembles the full compose invocation for args, inserting the
// compose file and any active profiles.
func (c *Controller) command(cfg envconfig.EnvironmentConfig, args ...string) (string, []string) {
	full := append([]string(nil), c.composeCmd...)
	full = append(full, "-f", composeFileName)
	for _, profile := range cfg.ComposeProfiles() {
		full = append(full, "--profile", profile)
	}
	full = append(full, args...)
	return full[0], full[1:]
}

func (c *Controller) runVerb(ctx context.Context, verb string, cfg envconfig.EnvironmentConfig, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	name, cmdArgs := c.command(cfg, args...)
	c.log.Debug("running compose verb", "verb", verb, "args", cmdArgs)

	_, stderr, err := c.runner.Run(runCtx, c.baseDir, composeEnv(cfg), name, cmdArgs...)
	if err != nil {
		return c.commandError(verb, stderr, err)
	}
	return nil
}

func (c *Controller) commandError(verb string, stderr []byte, err error) error {
	code := -1
	if exitErr, ok := err.(interface{ ExitCode() int }); ok {
		code = exitErr.ExitCode()
	}
	return &CommandError{
		Verb:     verb,
		Stderr:   string(stderr),
		ExitCode: code,
		Err:      err,
	}
}

// composeEnv extends the process environment with the variables the
// compose file interpolates.
func composeEnv(cfg envconfig.EnvironmentConfig) []string {
	env := os.Environ()
	env = append(env,
		"MQTT_USER="+cfg.MQTTUser,
		"MQTT_PASSWORD="+cfg.MQTTPassword,
		"ZIGBEE_DEVICE="+cfg.ZigbeeDevice,
		"UID="+strconv.Itoa(os.Getuid()),
		"GID="+strconv.Itoa(os.Getgid()),
	)
	return env
}
