package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	// DefaultHost and DefaultPort point at the broker container's published
	// listener on the host.
	DefaultHost = "localhost"
	DefaultPort = 1883

	// DefaultTimeout bounds one connect attempt.
	DefaultTimeout = 5 * time.Second

	disconnectQuiesceMS = 250
)

// Options identifies the broker and the credentials to present.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string

	// Timeout bounds the connect attempt. Defaults to DefaultTimeout.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

func (o Options) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", o.Host, o.Port)
}

// Result is the outcome of one credential probe, shaped for direct
// rendering by a presentation layer.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// Probe connects to the broker with the given credentials and disconnects
// again, publishing nothing. Failures land in the Result rather than an
// error return, since a refused connection is the answer the caller asked
// for, not a fault.
func Probe(ctx context.Context, opts Options) Result {
	opts = opts.withDefaults()
	res := Result{Host: opts.Host, Port: opts.Port}

	client := newClient(opts)
	defer client.Disconnect(disconnectQuiesceMS)

	if err := waitConnect(ctx, client, opts.Timeout); err != nil {
		res.Message = err.Error()
		return res
	}

	res.OK = true
	res.Message = "connection successful"
	return res
}

func newClient(opts Options) pahomqtt.Client {
	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(opts.brokerURL()).
		SetClientID("z2m-manager-" + uuid.NewString()[:8]).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetConnectTimeout(opts.Timeout).
		SetKeepAlive(10 * time.Second).
		SetAutoReconnect(false)
	return pahomqtt.NewClient(clientOpts)
}

// waitConnect runs the connect handshake, honoring both the timeout and
// ctx cancellation.
func waitConnect(ctx context.Context, client pahomqtt.Client, timeout time.Duration) error {
	token := client.Connect()

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-done:
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %v", ErrConnect, err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: no answer within %s", ErrConnect, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
