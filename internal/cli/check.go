// Package cli — check.go implements the "flaresolverr check" command.
//
// The check command verifies that the local environment can actually run
// sessions with the current configuration: the config resolves, the
// debug-port range has free ports, and the configured driver's backend
// (browser executable or Docker daemon) is reachable. It exits with the
// same codes serve would fail with, so it doubles as a pre-flight probe
// for init scripts.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Barresider/FlareSolverr/internal/browser"
	"github.com/Barresider/FlareSolverr/internal/config"
	"github.com/Barresider/FlareSolverr/internal/docker"
	"github.com/Barresider/FlareSolverr/internal/model"
	"github.com/Barresider/FlareSolverr/internal/port"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the environment can run sessions",
		Long: `Verify the current configuration against the local environment:
config file and environment variables resolve, free debug ports exist,
and the configured browser driver is usable.

Examples:
  flaresolverr check
  DOCKER_MODE=true flaresolverr check --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context())
		},
	}

	return cmd
}

// checkResult is one verification step's outcome.
type checkResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// runCheck performs all verification steps, prints their results, and
// returns the first failure as a CLIError so the exit code reflects it.
func runCheck(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var results []checkResult
	var firstErr error

	record := func(name string, err error, okDetail string) {
		r := checkResult{Name: name, OK: err == nil, Detail: okDetail}
		if err != nil {
			r.Detail = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}
		results = append(results, r)
	}

	record("config", nil, fmt.Sprintf("driver=%s listen=%s:%d", cfg.Driver, cfg.Host, cfg.Port))

	used := port.NewScanner().UsedPorts(cfg.CDPRange)
	free := cfg.CDPRange.Size() - len(used)
	var portErr error
	if free == 0 {
		portErr = model.NewCLIError(
			model.ExitPortExhausted,
			fmt.Sprintf("no free ports in range %s", cfg.CDPRange),
		)
	}
	record("debug ports", portErr, fmt.Sprintf("%d of %d ports free in %s", free, cfg.CDPRange.Size(), cfg.CDPRange))

	switch cfg.Driver {
	case model.DriverDocker:
		record("docker daemon", checkDocker(ctx), "daemon reachable")
	default:
		exe, err := browser.FindExecutable(cfg.BrowserPath)
		record("browser executable", err, exe)
	}

	printCheckResults(results)
	return firstErr
}

// checkDocker verifies Docker daemon connectivity.
func checkDocker(ctx context.Context) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	return cli.Ping(ctx)
}

// printCheckResults outputs the verification results in text or JSON
// format, depending on the global --json flag.
func printCheckResults(results []checkResult) {
	if IsJSONOutput() {
		type resultJSON struct {
			Checks []checkResult `json:"checks"`
			OK     bool          `json:"ok"`
		}

		out := resultJSON{Checks: results, OK: true}
		for _, r := range results {
			if !r.OK {
				out.OK = false
			}
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "FAIL"
		}
		fmt.Printf("%-20s %-5s %s\n", r.Name, status, r.Detail)
	}
}
