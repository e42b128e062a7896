// Package cli — serve.go implements the "flaresolverr serve" command.
//
// The serve command is the long-running service: it resolves the
// configuration, builds the browser launcher for the configured driver,
// and runs the HTTP API until interrupted. SIGINT/SIGTERM trigger a
// graceful shutdown that destroys every live session and releases every
// debug port.
package cli

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Barresider/FlareSolverr/internal/browser"
	"github.com/Barresider/FlareSolverr/internal/config"
	"github.com/Barresider/FlareSolverr/internal/logging"
	"github.com/Barresider/FlareSolverr/internal/model"
	"github.com/Barresider/FlareSolverr/internal/port"
	"github.com/Barresider/FlareSolverr/internal/server"
	"github.com/Barresider/FlareSolverr/internal/session"
)

// serveFlags holds the flag values for the serve command.
type serveFlags struct {
	// logJSON switches the service log from the human console format to
	// JSON lines, for running under a supervisor or log shipper.
	logJSON bool
}

// NewServeCommand creates the "serve" cobra command.
func NewServeCommand() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session service",
		Long: `Run the HTTP API that creates and destroys browser sessions.

Configuration comes from the optional --config file and environment
variables (HOST, PORT, CDP_PORT_MIN, CDP_PORT_MAX, DOCKER_MODE, ...).

Examples:
  flaresolverr serve
  flaresolverr serve --config /etc/flaresolverr.jsonc
  CDP_PORT_MIN=42000 CDP_PORT_MAX=42050 flaresolverr serve`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.logJSON, "log-json", false, "Emit service logs as JSON lines")

	return cmd
}

// runServe is the main logic function for the serve command: resolve
// config, assemble allocator + launcher + storage + server, run until
// signaled, then tear everything down.
func runServe(ctx context.Context, flags *serveFlags) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logging.New(logging.Options{Level: level, JSON: flags.logJSON})

	log.Info().
		Str("version", Version).
		Str("driver", cfg.Driver.String()).
		Str("cdp_range", cfg.CDPRange.String()).
		Msg("starting flaresolverr")

	allocator, err := port.NewAllocator(cfg.CDPRange, port.NewScanner())
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid debug-port range", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher, cleanup, err := buildLauncher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	storage := session.NewStorage(allocator, launcher, log)
	storage.StartJanitor(session.DefaultJanitorInterval)

	srv := server.New(cfg.Host, cfg.Port, storage, cfg.SessionTTL, log)
	serveErr := srv.Start(ctx)

	// Shutdown runs against a fresh context: the signal context is already
	// canceled by the time we get here.
	storage.Shutdown(context.Background())
	log.Info().Msg("flaresolverr stopped")

	return serveErr
}

// buildLauncher constructs the browser launcher for the configured driver
// and returns a cleanup function for launcher-owned resources.
func buildLauncher(ctx context.Context, cfg config.Config, log zerolog.Logger) (browser.Launcher, func(), error) {
	switch cfg.Driver {
	case model.DriverDocker:
		dl, err := browser.NewDockerLauncher(ctx, cfg.BrowserImage, log)
		if err != nil {
			return nil, nil, err
		}

		// Containers from a previous process lifetime hold host ports the
		// fresh allocator knows nothing about; reclaim them up front.
		if removed, err := dl.ReclaimOrphans(ctx); err != nil {
			log.Warn().Err(err).Msg("orphan reclaim failed")
		} else if removed > 0 {
			log.Info().Int("count", removed).Msg("reclaimed orphaned session containers")
		}

		return dl, func() { _ = dl.Close() }, nil

	default:
		pl, err := browser.NewProcessLauncher(cfg.BrowserPath, cfg.Headless, needNoSandbox(), log)
		if err != nil {
			return nil, nil, err
		}
		return pl, func() {}, nil
	}
}

// needNoSandbox reports whether the Chromium sandbox must be disabled.
// Chromium refuses to start sandboxed as root, which is the normal state
// inside minimal containers.
func needNoSandbox() bool {
	return runtime.GOOS == "linux" && os.Geteuid() == 0
}
