package browser

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Barresider/FlareSolverr/internal/docker"
)

// DefaultBrowserImage is the container image used by the docker driver when
// none is configured. headless-shell is a minimal Chromium build that starts
// its DevTools listener on the container's CDP port by default.
const DefaultBrowserImage = "chromedp/headless-shell:latest"

// containerStopTimeout is the grace period a session container gets before
// the daemon kills it.
const containerStopTimeout = 5 * time.Second

// DockerLauncher runs one browser container per session.
type DockerLauncher struct {
	cli   *docker.Client
	image string
	log   zerolog.Logger
}

// NewDockerLauncher creates a DockerLauncher and verifies daemon
// connectivity so a stopped Docker surfaces at startup, not on the first
// session request.
func NewDockerLauncher(ctx context.Context, image string, log zerolog.Logger) (*DockerLauncher, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}

	if image == "" {
		image = DefaultBrowserImage
	}

	return &DockerLauncher{cli: cli, image: image, log: log}, nil
}

// Launch starts a browser container publishing debugPort onto the
// container's CDP port, then waits for the endpoint to answer. On readiness
// failure the container is force-removed.
func (l *DockerLauncher) Launch(ctx context.Context, sessionID string, debugPort int) (Browser, error) {
	containerID, err := docker.RunSessionContainer(ctx, l.cli, l.image, sessionID, debugPort, time.Now())
	if err != nil {
		return nil, err
	}

	l.Log().Debug().
		Str("session_id", sessionID).
		Int("debug_port", debugPort).
		Str("container_id", containerID).
		Msg("browser container started")

	if err := waitForCDP(ctx, debugPort); err != nil {
		_ = docker.RemoveSessionContainer(context.WithoutCancel(ctx), l.cli, containerID, true)
		return nil, err
	}

	return &dockerBrowser{
		cli:         l.cli,
		containerID: containerID,
		port:        debugPort,
		log:         l.log.With().Str("session_id", sessionID).Logger(),
	}, nil
}

// ReclaimOrphans removes session containers left behind by a previous
// process lifetime. Allocator state is process-lifetime only, so containers
// that outlived the process hold ports the fresh allocator believes to be
// foreign; removing them returns those ports to the host. Returns the
// number of containers removed.
func (l *DockerLauncher) ReclaimOrphans(ctx context.Context) (int, error) {
	orphans, err := docker.ListSessionContainers(ctx, l.cli)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, orphan := range orphans {
		if err := docker.RemoveSessionContainer(ctx, l.cli, orphan.ID, true); err != nil {
			l.log.Warn().Err(err).
				Str("container_id", orphan.ID).
				Str("session_id", orphan.Labels.SessionID).
				Msg("failed to remove orphaned session container")
			continue
		}
		l.log.Info().
			Str("session_id", orphan.Labels.SessionID).
			Int("debug_port", orphan.Labels.DebugPort).
			Msg("removed orphaned session container")
		removed++
	}

	return removed, nil
}

// Log returns the launcher's logger.
func (l *DockerLauncher) Log() *zerolog.Logger {
	return &l.log
}

// Close releases the underlying Docker client.
func (l *DockerLauncher) Close() error {
	return l.cli.Close()
}

// dockerBrowser is a Browser backed by a session container.
type dockerBrowser struct {
	cli         *docker.Client
	containerID string
	port        int
	log         zerolog.Logger
	stopped     bool
}

// DebugPort returns the published host port of the DevTools endpoint.
func (b *dockerBrowser) DebugPort() int {
	return b.port
}

// Stop stops and removes the session container. A failed graceful stop
// falls through to the forced removal, so teardown always reclaims the
// container name and the published port.
func (b *dockerBrowser) Stop(ctx context.Context) error {
	if b.stopped {
		return nil
	}
	b.stopped = true

	if err := docker.StopSessionContainer(ctx, b.cli, b.containerID, containerStopTimeout); err != nil {
		b.log.Warn().Err(err).Str("container_id", b.containerID).Msg("graceful container stop failed")
	}

	return docker.RemoveSessionContainer(ctx, b.cli, b.containerID, true)
}
