// Package browser launches and stops the browser instances behind sessions.
//
// Two backends implement the Launcher interface:
//   - ProcessLauncher starts a Chrome/Chromium binary on the host with
//     --remote-debugging-port set to the session's allocated port.
//   - DockerLauncher runs one headless Chromium container per session and
//     publishes the allocated host port onto the container's CDP port.
//
// Both wait until the DevTools endpoint answers /json/version before
// reporting the browser as started, so callers never receive a session
// whose debugging endpoint is not yet accepting connections.
package browser
