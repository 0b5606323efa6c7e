package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rocket-home/z2m-manager/internal/device"
	"github.com/rocket-home/z2m-manager/internal/doctor"
	"github.com/rocket-home/z2m-manager/internal/stack"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the state of every stack service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			statuses, err := a.manager.CurrentStatus(cmd.Context())
			if statuses != nil {
				// Partial information still renders; the error follows.
				if renderErr := a.out.statuses(statuses); renderErr != nil {
					return renderErr
				}
			}
			if err != nil && !errors.Is(err, stack.ErrCommandFailed) {
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			return nil
		},
	}
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "devices",
		Short:         "List attached serial adapters and their classification",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			matches, err := a.manager.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.devices(matches)
		},
	}
}

func newCoordinatorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "coordinator",
		Short:         "Guess which Zigbee2MQTT driver the attached adapters need",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			matches, err := a.manager.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			guesses := make([]device.DriverGuess, 0, len(matches))
			for _, m := range matches {
				guesses = append(guesses, device.GuessDriver(m))
			}
			return a.out.guesses(guesses)
		},
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "reconcile",
		Short:         "Bring .env and the gateway config in line with the hardware",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.manager.ReconcileAndApply(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.reconcileResult(res)
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "start",
		Short:         "Reconcile, then start the container stack",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.manager.Start(cmd.Context())
			if err != nil {
				return err
			}
			if renderErr := a.out.reconcileResult(res); renderErr != nil {
				return renderErr
			}
			if !a.out.jsonMode {
				fmt.Fprintln(cmd.OutOrStdout(), "Stack started.")
			}
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "stop",
		Short:         "Stop the container stack",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.Stop(cmd.Context()); err != nil {
				return err
			}
			if !a.out.jsonMode {
				fmt.Fprintln(cmd.OutOrStdout(), "Stack stopped.")
			}
			return nil
		},
	}
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Reconcile, then recreate the container stack",
		Long: `Reconcile, then recreate the container stack.

Containers are recreated rather than restarted in place, so a changed
adapter path or credential actually reaches the services.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.manager.Restart(cmd.Context())
			if err != nil {
				return err
			}
			if renderErr := a.out.reconcileResult(res); renderErr != nil {
				return renderErr
			}
			if !a.out.jsonMode {
				fmt.Fprintln(cmd.OutOrStdout(), "Stack restarted.")
			}
			return nil
		},
	}
}

func newDownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "down",
		Short:         "Stop and remove the containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			removeVolumes, _ := cmd.Flags().GetBool("volumes")
			if err := a.manager.Down(cmd.Context(), removeVolumes); err != nil {
				return err
			}
			if !a.out.jsonMode {
				if removeVolumes {
					fmt.Fprintln(cmd.OutOrStdout(), "Stack and volumes removed.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Stack removed.")
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("volumes", false, "Also remove named volumes (erases broker state and the Zigbee pairing database)")
	return cmd
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "pull",
		Short:         "Pull the latest service images",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.Pull(cmd.Context()); err != nil {
				return err
			}
			if !a.out.jsonMode {
				fmt.Fprintln(cmd.OutOrStdout(), "Images pulled.")
			}
			return nil
		},
	}
}

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "logs [service]",
		Short:         "Show service logs",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			service := ""
			if len(args) == 1 {
				service = args[0]
			}
			follow, _ := cmd.Flags().GetBool("follow")

			stream, err := a.manager.StreamLogs(cmd.Context(), service, follow)
			if err != nil {
				return err
			}
			defer stream.Close()

			_, err = io.Copy(cmd.OutOrStdout(), stream)
			// A cancelled follow is how the user quits, not a failure.
			if err != nil && cmd.Context().Err() == nil {
				return fmt.Errorf("streaming logs: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("follow", "f", false, "Keep streaming new log lines")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "config",
		Short:         "Show the stored configuration (secrets masked)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, _, err := a.store.Load()
			if err != nil {
				return err
			}
			return a.out.config(cfg)
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Set one configuration field",
		Long: `Set one configuration field in .env.

Field names match the .env keys, case-insensitively: mqtt_user,
mqtt_password, zigbee_device, nodered_enabled, cloud_mqtt_enabled,
cloud_mqtt_host, cloud_mqtt_user, cloud_mqtt_password,
cloud_mqtt_protocol. Setting a secret this way overwrites it.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.SetField(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if !a.out.jsonMode {
				fmt.Fprintf(cmd.OutOrStdout(), "%s updated.\n", args[0])
			}
			return nil
		},
	}
}

func newPermitJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "permit-join <on|off>",
		Short:         "Open or close the Zigbee join window on the running gateway",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var enable bool
			switch args[0] {
			case "on":
				enable = true
			case "off":
				enable = false
			default:
				return fmt.Errorf("argument must be on or off, got %q", args[0])
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			windowSec, _ := cmd.Flags().GetInt("window")
			persist, _ := cmd.Flags().GetBool("persist")
			window := time.Duration(windowSec) * time.Second
			if err := a.manager.PermitJoin(cmd.Context(), enable, window, persist); err != nil {
				return err
			}
			if !a.out.jsonMode {
				switch {
				case persist:
					fmt.Fprintf(cmd.OutOrStdout(), "Startup permit_join set to %v.\n", enable)
				case enable:
					fmt.Fprintf(cmd.OutOrStdout(), "Join window open for %s.\n", window)
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "Join window closed.")
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("window", 254, "Seconds to keep the join window open")
	cmd.Flags().Bool("persist", false, "Write the startup permit_join flag to the gateway config instead of toggling the running gateway")
	return cmd
}

func newMQTTTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "mqtt-test",
		Short:         "Verify the stored broker credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.manager.TestMQTT(cmd.Context())
			if err != nil {
				return err
			}
			if a.out.jsonMode {
				return a.out.printJSON(res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%d: %s\n", res.Host, res.Port, res.Message)
			if !res.OK {
				return errors.New("broker rejected the stored credentials")
			}
			return nil
		},
	}
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Check host readiness: docker, groups, ports, adapters",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			checks := doctor.New(doctor.Options{}).Run(cmd.Context())
			if renderErr := a.out.checks(checks); renderErr != nil {
				return renderErr
			}
			for _, c := range checks {
				if !c.OK {
					return errors.New("some checks failed")
				}
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show recent recorded actions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := a.manager.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.out.history(entries)
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum entries to show")
	return cmd
}
