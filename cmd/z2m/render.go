package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rocket-home/z2m-manager/internal/audit"
	"github.com/rocket-home/z2m-manager/internal/device"
	"github.com/rocket-home/z2m-manager/internal/doctor"
	"github.com/rocket-home/z2m-manager/internal/envconfig"
	"github.com/rocket-home/z2m-manager/internal/manager"
	"github.com/rocket-home/z2m-manager/internal/stack"
)

// formatter renders structured results either as JSON or for a human
// terminal, selected by the global --json flag.
type formatter struct {
	jsonMode bool
	w        io.Writer
}

func newFormatter(cmd *cobra.Command) *formatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &formatter{jsonMode: jsonMode, w: cmd.OutOrStdout()}
}

func (f *formatter) printJSON(data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	fmt.Fprintln(f.w, string(b))
	return nil
}

func (f *formatter) statuses(statuses []stack.ServiceStatus) error {
	if f.jsonMode {
		return f.printJSON(statuses)
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSTATE\tHEALTH\tDETAIL")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Service, s.State, orDash(s.Health), orDash(s.Detail))
	}
	return tw.Flush()
}

func (f *formatter) devices(matches []device.Match) error {
	if f.jsonMode {
		return f.printJSON(matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(f.w, "No serial adapters detected.")
		return nil
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tCONFIDENCE\tUSB ID\tSTABLE PATH")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.Descriptor.Path, m.Kind, m.Confidence,
			orDash(m.Descriptor.USBID()), orDash(m.Descriptor.ByIDPath))
	}
	return tw.Flush()
}

func (f *formatter) reconcileResult(res manager.ReconcileResult) error {
	if f.jsonMode {
		return f.printJSON(res)
	}
	if res.Plan.Empty() {
		fmt.Fprintln(f.w, "Nothing to change; configuration already matches the hardware.")
	} else {
		fmt.Fprintln(f.w, "Applied:")
		for _, intent := range res.Plan.Intents {
			if intent.Value != "" {
				fmt.Fprintf(f.w, "  %s: %s\n", intent.Kind, intent.Value)
			} else {
				fmt.Fprintf(f.w, "  %s\n", intent.Kind)
			}
		}
	}
	if res.Plan.NoDevice {
		fmt.Fprintln(f.w, "Warning: no Zigbee adapter present and none configured.")
	}
	return nil
}

func (f *formatter) config(cfg envconfig.EnvironmentConfig) error {
	// Secrets are masked in both modes; print the .env file for raw values.
	masked := cfg
	masked.MQTTPassword = mask(cfg.MQTTPassword)
	masked.CloudPassword = mask(cfg.CloudPassword)

	if f.jsonMode {
		return f.printJSON(masked)
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "MQTT user\t%s\n", masked.MQTTUser)
	fmt.Fprintf(tw, "MQTT password\t%s\n", masked.MQTTPassword)
	fmt.Fprintf(tw, "Zigbee device\t%s\n", masked.ZigbeeDevice)
	fmt.Fprintf(tw, "NodeRED\t%v\n", masked.NodeREDEnabled)
	fmt.Fprintf(tw, "Cloud bridge\t%v\n", masked.CloudEnabled)
	if masked.CloudEnabled {
		fmt.Fprintf(tw, "Cloud host\t%s\n", masked.CloudHost)
		fmt.Fprintf(tw, "Cloud user\t%s\n", orDash(masked.CloudUser))
		fmt.Fprintf(tw, "Cloud password\t%s\n", masked.CloudPassword)
		fmt.Fprintf(tw, "Cloud protocol\t%s\n", masked.CloudProtocol)
	}
	return tw.Flush()
}

func (f *formatter) guesses(guesses []device.DriverGuess) error {
	if f.jsonMode {
		return f.printJSON(guesses)
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DRIVER\tCONFIDENCE\tREASON")
	for _, g := range guesses {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Driver, g.Confidence, orDash(g.Reason))
	}
	return tw.Flush()
}

func (f *formatter) checks(checks []doctor.Check) error {
	if f.jsonMode {
		return f.printJSON(checks)
	}
	for _, c := range checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(f.w, "[%4s] %s: %s\n", mark, c.Name, c.Message)
		if !c.OK && c.Hint != "" {
			fmt.Fprintf(f.w, "       hint: %s\n", c.Hint)
		}
	}
	return nil
}

func (f *formatter) history(entries []audit.Entry) error {
	if f.jsonMode {
		return f.printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(f.w, "No recorded actions.")
		return nil
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Action, renderDetails(e.Details))
	}
	return tw.Flush()
}

func renderDetails(details map[string]any) string {
	if len(details) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, " ")
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "********"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
