package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Browser is a running browser instance bound to one session.
type Browser interface {
	// DebugPort returns the host TCP port of the DevTools endpoint.
	DebugPort() int

	// Stop terminates the browser, gracefully first, forcibly after the
	// backend's grace period. Stop is idempotent.
	Stop(ctx context.Context) error
}

// Launcher starts browser instances. The session storage owns a single
// Launcher and calls it with a freshly allocated debug port for every new
// session.
type Launcher interface {
	// Launch starts a browser whose DevTools endpoint listens on debugPort.
	// It blocks until the endpoint answers or the startup deadline passes.
	Launch(ctx context.Context, sessionID string, debugPort int) (Browser, error)
}

const (
	// cdpReadyTimeout bounds how long Launch waits for the DevTools
	// endpoint to come up before giving up and tearing the browser down.
	cdpReadyTimeout = 15 * time.Second

	// cdpPollInterval is the delay between readiness probes.
	cdpPollInterval = 200 * time.Millisecond

	// cdpProbeTimeout bounds a single readiness probe.
	cdpProbeTimeout = 500 * time.Millisecond
)

// DevtoolsURL builds the HTTP DevTools endpoint for a debug port. This is
// the URL automation clients are handed when they describe a session.
func DevtoolsURL(debugPort int) string {
	return fmt.Sprintf("http://localhost:%d", debugPort)
}

// IsReachable checks if a DevTools endpoint is responding.
func IsReachable(ctx context.Context, devtoolsURL string, timeout time.Duration) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	versionURL := strings.TrimSuffix(devtoolsURL, "/") + "/json/version"
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, versionURL, nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// WebSocketURL fetches the browser-level DevTools WebSocket URL from a
// running browser's /json/version endpoint.
func WebSocketURL(ctx context.Context, devtoolsURL string, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	versionURL := strings.TrimSuffix(devtoolsURL, "/") + "/json/version"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, versionURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", err
	}

	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("no webSocketDebuggerUrl in response")
	}

	return version.WebSocketDebuggerURL, nil
}

// waitForCDP polls the DevTools endpoint until it answers or the deadline
// passes. Both launch backends share this readiness loop.
func waitForCDP(ctx context.Context, debugPort int) error {
	devtoolsURL := DevtoolsURL(debugPort)
	deadline := time.Now().Add(cdpReadyTimeout)

	for time.Now().Before(deadline) {
		if IsReachable(ctx, devtoolsURL, cdpProbeTimeout) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cdpPollInterval):
		}
	}

	return fmt.Errorf("DevTools endpoint did not start on port %d within %s", debugPort, cdpReadyTimeout)
}
