// Package cli — ports.go implements the "flaresolverr ports" command.
//
// The ports command probes the configured debug-port range on the local
// machine and reports which ports are already bound by other processes.
// It answers the operator question "how many sessions can this box still
// take" without starting the service.
package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Barresider/FlareSolverr/internal/config"
	"github.com/Barresider/FlareSolverr/internal/port"
)

// NewPortsCommand creates the "ports" cobra command.
func NewPortsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Show debug-port range availability",
		Long: `Probe the configured remote-debugging port range and report which
ports are already bound on this machine.

Examples:
  flaresolverr ports
  CDP_PORT_MIN=42000 CDP_PORT_MAX=42050 flaresolverr ports --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPorts()
		},
	}

	return cmd
}

// runPorts resolves the configured range, probes every port in it, and
// prints the result.
func runPorts() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	VerboseLog("Probing range %s", cfg.CDPRange)
	used := port.NewScanner().UsedPorts(cfg.CDPRange)

	printPortsResult(cfg.CDPRange, used)
	return nil
}

// printPortsResult outputs the probe result in text or JSON format,
// depending on the global --json flag.
func printPortsResult(r port.Range, used []int) {
	if IsJSONOutput() {
		type resultJSON struct {
			Range     string `json:"range"`
			Capacity  int    `json:"capacity"`
			Used      []int  `json:"used"`
			Available int    `json:"available"`
		}

		result := resultJSON{
			Range:    r.String(),
			Capacity: r.Size(),
			// Empty slice instead of nil so JSON output shows [] rather
			// than null when every port is free.
			Used:      append([]int{}, used...),
			Available: r.Size() - len(used),
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Range:     %s\n", r)
	fmt.Printf("Capacity:  %d\n", r.Size())
	fmt.Printf("In use:    %s\n", FormatPortList(used))
	fmt.Printf("Available: %d\n", r.Size()-len(used))
}

// FormatPortList converts a slice of port numbers into a comma-separated
// string. Returns "-" for an empty slice.
//
// Example:
//
//	[41003, 41000] → "41000,41003"
//	[]             → "-"
func FormatPortList(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}

	// Sort numerically; lexicographic order would put "41100" before
	// "4200".
	sorted := append([]int{}, ports...)
	sort.Ints(sorted)

	out := make([]string, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, strconv.Itoa(p))
	}
	return strings.Join(out, ",")
}
