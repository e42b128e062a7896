package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Driver identifies the backend used to launch browser instances.
type Driver string

const (
	// DriverProcess launches a Chrome/Chromium binary directly on the host.
	DriverProcess Driver = "process"

	// DriverDocker runs each browser inside its own container, publishing
	// the allocated debug port onto the container's CDP port.
	DriverDocker Driver = "docker"
)

// String returns the string representation of the Driver.
func (d Driver) String() string {
	return string(d)
}

// IsValid checks whether the Driver value is one of the supported backends.
func (d Driver) IsValid() bool {
	switch d {
	case DriverProcess, DriverDocker:
		return true
	default:
		return false
	}
}

// ParseDriver converts a string to a Driver.
// Returns an error if the string does not match any supported backend.
func ParseDriver(s string) (Driver, error) {
	d := Driver(strings.ToLower(s))
	if !d.IsValid() {
		return "", fmt.Errorf("invalid browser driver: %q (valid: process, docker)", s)
	}
	return d, nil
}

// Session represents one logical browser-automation instance together with
// its remote-debugging endpoint. A session owns exactly one debug port for
// its whole lifetime; the port is handed back when the session is destroyed.
//
// Fields are mutated only by the session storage while holding its lock.
type Session struct {
	// ID is the unique session identifier, either caller-supplied or a
	// generated UUID.
	ID string `json:"id"`

	// DebugPort is the TCP port on which the session's browser exposes the
	// DevTools protocol.
	DebugPort int `json:"debugPort"`

	// DevtoolsURL is the HTTP endpoint automation clients attach to,
	// e.g. "http://localhost:41001".
	DevtoolsURL string `json:"devtoolsUrl"`

	// CreatedAt is the timestamp when the browser was launched.
	CreatedAt time.Time `json:"createdAt"`

	// LastActivity tracks the most recent use of the session. The idle
	// janitor compares against it when IdleTimeout is set.
	LastActivity time.Time `json:"lastActivity"`

	// IdleTimeout is the inactivity duration after which the janitor
	// destroys the session. Zero disables idle cleanup for this session.
	IdleTimeout time.Duration `json:"idleTimeout,omitempty"`

	// Unhealthy marks a session whose browser stopped responding. The next
	// Get for this ID replaces it with a fresh browser instance.
	Unhealthy bool `json:"unhealthy,omitempty"`
}

// Lifetime returns how long the session has existed.
func (s *Session) Lifetime() time.Duration {
	return time.Since(s.CreatedAt)
}

// IdleFor returns the time elapsed since the session was last used.
func (s *Session) IdleFor() time.Duration {
	return time.Since(s.LastActivity)
}

// Expired reports whether the session has exceeded its idle timeout.
// Sessions without an idle timeout never expire.
func (s *Session) Expired() bool {
	if s.IdleTimeout <= 0 {
		return false
	}
	return s.IdleFor() > s.IdleTimeout
}

// Touch resets the inactivity clock.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}

// sessionIDRegex validates session identifiers: an alphanumeric first
// character followed by alphanumerics and the separators found in UUIDs
// and user-supplied names.
var sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// maxSessionIDLength bounds caller-supplied identifiers so they remain
// usable as container names and log fields.
const maxSessionIDLength = 128

// ErrInvalidSessionID is wrapped by every ValidateSessionID failure, so
// callers can map the whole family to one error class.
var ErrInvalidSessionID = errors.New("invalid session id")

// ValidateSessionID checks if the given string is a valid session identifier.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidSessionID)
	}
	if len(id) > maxSessionIDLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidSessionID, id, maxSessionIDLength)
	}
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q must start with an alphanumeric and contain only alphanumerics, dots, underscores and hyphens", ErrInvalidSessionID, id)
	}
	return nil
}

// ExitCode defines standard CLI exit codes. These codes let scripts and
// supervisors programmatically distinguish failure modes.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the configuration could not be loaded
	// or failed validation.
	ExitConfigError ExitCode = 2

	// ExitBrowserNotFound indicates no supported browser executable was
	// found on the host.
	ExitBrowserNotFound ExitCode = 3

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// while the docker driver is selected.
	ExitDockerNotRunning ExitCode = 4

	// ExitPortExhausted indicates the configured debug-port range has no
	// free ports left.
	ExitPortExhausted ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// It lets the CLI layer translate domain errors into process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
