// z2m is the command line front end for the home automation stack
// manager: adapter discovery, configuration reconciliation and container
// lifecycle, wrapped around the manager facade.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rocket-home/z2m-manager/internal/audit"
	"github.com/rocket-home/z2m-manager/internal/envconfig"
	"github.com/rocket-home/z2m-manager/internal/infrastructure/database"
	"github.com/rocket-home/z2m-manager/internal/infrastructure/logging"
	"github.com/rocket-home/z2m-manager/internal/manager"
	"github.com/rocket-home/z2m-manager/internal/stack"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const historyFileName = "history.db"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "z2m",
		Short: "Manage the local Zigbee2MQTT stack",
		Long: `z2m manages a local home automation stack: the MQTT broker, the
Zigbee2MQTT gateway and the optional NodeRED service, plus the Zigbee USB
adapter they depend on. It detects adapters, keeps the .env configuration
reconciled with the hardware, and drives the containers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version + " (" + commit + ")"
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	root.PersistentFlags().String("dir", "", "Stack directory holding .env and docker-compose.yml (default: current directory)")
	root.PersistentFlags().Bool("json", false, "Output in JSON format")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().Bool("no-history", false, "Do not record actions in the local history database")

	root.AddCommand(
		newStatusCmd(),
		newDevicesCmd(),
		newCoordinatorCmd(),
		newReconcileCmd(),
		newStartCmd(),
		newStopCmd(),
		newRestartCmd(),
		newDownCmd(),
		newPullCmd(),
		newLogsCmd(),
		newConfigCmd(),
		newSetCmd(),
		newPermitJoinCmd(),
		newMQTTTestCmd(),
		newDoctorCmd(),
		newHistoryCmd(),
	)
	return root
}

// app bundles what every command needs. Close releases the history
// database when one was opened.
type app struct {
	manager *manager.Manager
	store   *envconfig.Store
	log     *logging.Logger
	out     *formatter

	db *database.DB
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// newApp wires the manager from persistent flags. The history database is
// best-effort: a failure to open it degrades to no history, not a dead CLI.
func newApp(cmd *cobra.Command) (*app, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		dir = wd
	}

	level, _ := cmd.Flags().GetString("log-level")
	log := logging.New(logging.Config{Level: level, Format: "text"}, version)

	store := envconfig.NewStore(dir)
	controller := stack.NewController(cmd.Context(), stack.Options{
		BaseDir: dir,
		Logger:  log.With("component", "stack"),
	})

	a := &app{
		store: store,
		log:   log,
		out:   newFormatter(cmd),
	}

	var history audit.Repository
	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		db, err := database.Open(database.Config{
			Path:    filepath.Join(dir, historyFileName),
			WALMode: true,
		})
		if err != nil {
			log.Warn("history database unavailable", "error", err)
		} else {
			repo, err := audit.NewSQLiteRepository(cmd.Context(), db.DB)
			if err != nil {
				log.Warn("history schema setup failed", "error", err)
				db.Close()
			} else {
				a.db = db
				history = repo
			}
		}
	}

	a.manager = manager.New(manager.Options{
		Store:      store,
		Controller: controller,
		Audit:      history,
		Logger:     log.With("component", "manager"),
	})
	return a, nil
}
