package docker

import (
	"fmt"
	"strconv"
	"time"
)

// Label key constants define the Docker label keys stamped onto every
// session container. The labels are the only persistence the docker driver
// has: after a restart the service reconstructs which containers belong to
// it purely from label queries.
//
// All keys share the "flaresolverr." prefix to namespace them away from
// labels set by other tools on the same host.
const (
	// LabelPrefix is the common prefix for all session-container labels.
	LabelPrefix = "flaresolverr."

	// LabelManagedBy identifies containers managed by this service.
	// Key: "flaresolverr.managed-by", Value: always "flaresolverr".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelSessionID stores the owning session's identifier.
	// Key: "flaresolverr.session-id".
	LabelSessionID = LabelPrefix + "session-id"

	// LabelDebugPort stores the host port the container's CDP endpoint is
	// published on. Key: "flaresolverr.debug-port".
	LabelDebugPort = LabelPrefix + "debug-port"

	// LabelCreatedAt stores the RFC3339 timestamp of session creation.
	// Key: "flaresolverr.created-at".
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "flaresolverr"

// SessionLabels is the parsed form of a session container's labels.
type SessionLabels struct {
	SessionID string
	DebugPort int
	CreatedAt time.Time
}

// BuildLabels constructs the Docker label map for a session container.
// The labels allow full reconstruction of the session-container binding
// from `docker inspect` alone.
func BuildLabels(sessionID string, debugPort int, createdAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelSessionID: sessionID,
		LabelDebugPort: strconv.Itoa(debugPort),
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs the session binding from a container's labels.
// This is the inverse of BuildLabels, used when reclaiming containers left
// behind by a previous process lifetime.
func ParseLabels(labels map[string]string) (*SessionLabels, error) {
	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	sessionID, ok := labels[LabelSessionID]
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("missing required Docker label %s", LabelSessionID)
	}

	portStr, ok := labels[LabelDebugPort]
	if !ok {
		return nil, fmt.Errorf("missing required Docker label %s", LabelDebugPort)
	}
	debugPort, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid label %s=%q: %w", LabelDebugPort, portStr, err)
	}

	// created-at is best-effort: an unparsable timestamp should not make a
	// container unreclaimable.
	var createdAt time.Time
	if ts, ok := labels[LabelCreatedAt]; ok {
		createdAt, _ = time.Parse(time.RFC3339, ts)
	}

	return &SessionLabels{
		SessionID: sessionID,
		DebugPort: debugPort,
		CreatedAt: createdAt,
	}, nil
}
