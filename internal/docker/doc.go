// Package docker wraps the Docker Engine SDK client for the docker browser
// driver. Each browser session gets its own headless Chromium container with
// the allocated host debug port published onto the container's CDP port.
//
// Session metadata (session id, debug port, creation time) is stored as
// container labels, so leftover containers from a previous process lifetime
// can be discovered and removed at startup.
package docker
