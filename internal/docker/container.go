package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/go-connections/nat"

	"github.com/Barresider/FlareSolverr/internal/model"
)

// InternalCDPPort is the fixed port the browser listens on inside its
// container. The per-session host port is published onto it, so from the
// outside every session still has a unique debugging endpoint.
const InternalCDPPort = 9222

// containerNamePrefix namespaces session containers on the host.
const containerNamePrefix = "flaresolverr-session-"

// ContainerName returns the Docker container name for a session.
func ContainerName(sessionID string) string {
	return containerNamePrefix + sessionID
}

// SessionContainer describes a managed container discovered on the host.
type SessionContainer struct {
	// ID is the Docker container identifier.
	ID string

	// State is the Docker container state (e.g. "running", "exited").
	State string

	// Labels is the parsed session binding from the container's labels.
	Labels SessionLabels
}

// RunSessionContainer creates and starts a browser container for a session,
// publishing hostPort onto the container's fixed CDP port. Returns the
// container ID.
//
// The container gets the full session label set so it can be reclaimed
// after a service restart, and a 2g shm mount because Chromium crashes with
// the Docker default of 64m.
func RunSessionContainer(ctx context.Context, cli *Client, image, sessionID string, hostPort int, createdAt time.Time) (string, error) {
	internalPort, err := nat.NewPort("tcp", fmt.Sprintf("%d", InternalCDPPort))
	if err != nil {
		return "", fmt.Errorf("failed to build container port: %w", err)
	}

	cfg := &container.Config{
		Image:  image,
		Labels: BuildLabels(sessionID, hostPort, createdAt),
		ExposedPorts: nat.PortSet{
			internalPort: struct{}{},
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			internalPort: []nat.PortBinding{
				{HostIP: "0.0.0.0", HostPort: fmt.Sprintf("%d", hostPort)},
			},
		},
		ShmSize:    2 * 1024 * 1024 * 1024,
		AutoRemove: false,
	}

	created, err := cli.Inner().ContainerCreate(ctx, cfg, hostCfg, nil, nil, ContainerName(sessionID))
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create browser container for session %q", sessionID),
			err,
		)
	}

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		// Creation succeeded but start failed; remove the half-born
		// container so a retry does not collide on the name.
		_ = cli.Inner().ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start browser container for session %q", sessionID),
			err,
		)
	}

	return created.ID, nil
}

// StopSessionContainer stops a session container, giving the browser the
// specified grace period before the daemon kills it.
func StopSessionContainer(ctx context.Context, cli *Client, containerID string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveSessionContainer removes a session container. force kills a still
// running container first, which is what session teardown wants when the
// graceful stop already timed out.
func RemoveSessionContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}

// ListSessionContainers queries the daemon for every container carrying the
// managed-by label, including stopped ones. It is used at startup to find
// containers orphaned by a previous process lifetime so their ports and
// names can be reclaimed.
//
// Containers whose labels fail to parse are skipped rather than failing the
// whole listing; a single corrupted container should not block startup.
func ListSessionContainers(ctx context.Context, cli *Client) ([]SessionContainer, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]SessionContainer, 0, len(containers))
	for _, c := range containers {
		labels, parseErr := ParseLabels(c.Labels)
		if parseErr != nil {
			continue
		}
		result = append(result, SessionContainer{
			ID:     c.ID,
			State:  c.State,
			Labels: *labels,
		})
	}

	return result, nil
}
