package reconcile

import (
	"context"

	"github.com/rocket-home/z2m-manager/internal/envconfig"
	"github.com/rocket-home/z2m-manager/internal/gateway"
)

// Apply executes a plan in order, mutating cfg in place and writing through
// the store and gateway file. The caller persists cfg afterwards with
// store.Save and must hold the store lock for the whole cycle.
//
// Failures surface as *envconfig.ApplyError naming the file and operation;
// they are not retried here.
func Apply(ctx context.Context, plan Plan, cfg *envconfig.EnvironmentConfig, store *envconfig.Store, gw *gateway.File) error {
	materialized := false

	for _, intent := range plan.Intents {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch intent.Kind {
		case IntentSetDevice:
			cfg.ZigbeeDevice = intent.Value

		case IntentGenerateSecret:
			secret, err := NewSecret()
			if err != nil {
				return err
			}
			cfg.MQTTPassword = secret

		case IntentMaterializeTemplate:
			// One store call covers every absent template file.
			if materialized {
				continue
			}
			if _, err := store.MaterializeTemplates(*cfg); err != nil {
				return err
			}
			materialized = true

		case IntentUpdateGatewaySerial:
			if err := gw.SetSerialPort(intent.Value); err != nil {
				return &envconfig.ApplyError{
					Path: gw.Path(),
					Op:   "update gateway serial",
					Err:  err,
				}
			}
		}
	}
	return nil
}
