package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/Barresider/FlareSolverr/internal/model"
)

// stopGracePeriod is how long Stop waits after the interrupt signal before
// force-killing the browser process.
const stopGracePeriod = 5 * time.Second

// ProcessLauncher starts Chrome/Chromium binaries directly on the host.
type ProcessLauncher struct {
	// ExecutablePath overrides browser auto-detection when non-empty.
	ExecutablePath string

	// Headless runs the browser without a visible window.
	Headless bool

	// NoSandbox disables the Chromium sandbox. Required when the service
	// itself runs as root inside a container.
	NoSandbox bool

	// UserDataRoot is the directory under which per-session profile
	// directories are created. Defaults to the OS temp directory.
	UserDataRoot string

	// Log receives launch and teardown events.
	Log zerolog.Logger
}

// NewProcessLauncher creates a ProcessLauncher and verifies that a usable
// browser executable exists, so misconfiguration surfaces at startup rather
// than on the first session request.
func NewProcessLauncher(executablePath string, headless, noSandbox bool, log zerolog.Logger) (*ProcessLauncher, error) {
	exe, err := FindExecutable(executablePath)
	if err != nil {
		return nil, err
	}

	return &ProcessLauncher{
		ExecutablePath: exe,
		Headless:       headless,
		NoSandbox:      noSandbox,
		UserDataRoot:   filepath.Join(os.TempDir(), "flaresolverr"),
		Log:            log,
	}, nil
}

// Launch starts a browser process with the DevTools listener on debugPort
// and a session-private profile directory, then waits for the endpoint to
// answer. On readiness failure the process is killed and the profile
// directory removed.
func (l *ProcessLauncher) Launch(ctx context.Context, sessionID string, debugPort int) (Browser, error) {
	userDataDir := filepath.Join(l.UserDataRoot, sessionID)
	if err := os.MkdirAll(userDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create user data dir: %w", err)
	}

	args := buildArgs(debugPort, userDataDir, l.Headless, l.NoSandbox)

	cmd := exec.Command(l.ExecutablePath, args...)
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	l.Log.Debug().
		Str("session_id", sessionID).
		Int("debug_port", debugPort).
		Int("pid", cmd.Process.Pid).
		Msg("browser process started")

	if err := waitForCDP(ctx, debugPort); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		_ = os.RemoveAll(userDataDir)
		return nil, err
	}

	return &chromeProcess{
		cmd:         cmd,
		port:        debugPort,
		userDataDir: userDataDir,
		log:         l.Log.With().Str("session_id", sessionID).Logger(),
	}, nil
}

// chromeProcess is a Browser backed by a host Chrome/Chromium process.
type chromeProcess struct {
	cmd         *exec.Cmd
	port        int
	userDataDir string
	log         zerolog.Logger
	stopped     bool
}

// DebugPort returns the port the DevTools listener is bound to.
func (c *chromeProcess) DebugPort() int {
	return c.port
}

// Stop terminates the browser: interrupt first, kill after the grace
// period, matching how the browser itself handles window close. The
// session-private profile directory is removed afterwards.
func (c *chromeProcess) Stop(ctx context.Context) error {
	if c.stopped || c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	c.stopped = true

	_ = c.cmd.Process.Signal(os.Interrupt)

	done := make(chan error, 1)
	go func() {
		done <- c.cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		c.log.Warn().Int("pid", c.cmd.Process.Pid).Msg("browser did not exit gracefully, killing")
		_ = c.cmd.Process.Kill()
		<-done
	case <-ctx.Done():
		_ = c.cmd.Process.Kill()
		<-done
	}

	if err := os.RemoveAll(c.userDataDir); err != nil {
		c.log.Warn().Err(err).Str("dir", c.userDataDir).Msg("failed to remove user data dir")
	}

	return nil
}

// buildArgs assembles the browser command line for one session.
func buildArgs(debugPort int, userDataDir string, headless, noSandbox bool) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", debugPort),
		fmt.Sprintf("--user-data-dir=%s", userDataDir),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-sync",
		"--disable-background-networking",
		"--disable-component-update",
		"--disable-session-crashed-bubble",
		"--password-store=basic",
	}

	if headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}

	if noSandbox {
		args = append(args, "--no-sandbox", "--disable-setuid-sandbox")
	}

	if runtime.GOOS == "linux" {
		args = append(args, "--disable-dev-shm-usage")
	}

	// Open a blank tab so a DevTools target exists immediately.
	args = append(args, "about:blank")

	return args
}

// FindExecutable locates a Chrome/Chromium browser on the system. When
// customPath is non-empty it is validated and used as-is. Returns a
// model.CLIError with ExitBrowserNotFound when nothing usable is found.
func FindExecutable(customPath string) (string, error) {
	if customPath != "" {
		if !fileExists(customPath) {
			return "", model.NewCLIError(
				model.ExitBrowserNotFound,
				fmt.Sprintf("browser executable not found: %s", customPath),
			)
		}
		return customPath, nil
	}

	for _, candidate := range executableCandidates() {
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	return "", model.NewCLIError(
		model.ExitBrowserNotFound,
		"no supported browser found (Chrome/Chromium/Brave/Edge) — set BROWSER_PATH",
	)
}

// executableCandidates returns the known browser install paths for the
// current platform, most-preferred first.
func executableCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		home := os.Getenv("HOME")
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"),
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
			"/usr/bin/brave-browser",
			"/usr/bin/microsoft-edge",
		}
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		programFiles := os.Getenv("ProgramFiles")
		if programFiles == "" {
			programFiles = `C:\Program Files`
		}
		programFilesX86 := os.Getenv("ProgramFiles(x86)")
		if programFilesX86 == "" {
			programFilesX86 = `C:\Program Files (x86)`
		}

		var candidates []string
		if localAppData != "" {
			candidates = append(candidates,
				filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
			)
		}
		candidates = append(candidates,
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe"),
		)
		return candidates
	default:
		return nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
