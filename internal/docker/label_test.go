package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildParseLabels verifies that the session binding survives the
// label round trip, including the UTC normalization of the timestamp.
func TestBuildParseLabels(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	labels := BuildLabels("f47ac10b-58cc-4372-a567-0e02b2c3d479", 41003, createdAt)

	assert.Equal(t, ManagedByValue, labels[LabelManagedBy])
	assert.Equal(t, "41003", labels[LabelDebugPort])
	assert.Equal(t, "2026-03-14T09:30:00Z", labels[LabelCreatedAt])

	parsed, err := ParseLabels(labels)
	require.NoError(t, err)
	assert.Equal(t, "f47ac10b-58cc-4372-a567-0e02b2c3d479", parsed.SessionID)
	assert.Equal(t, 41003, parsed.DebugPort)
	assert.True(t, parsed.CreatedAt.Equal(createdAt))
}

// TestParseLabels_ForeignContainer verifies that containers without the
// managed-by marker are rejected so unrelated containers on the host are
// never reclaimed.
func TestParseLabels_ForeignContainer(t *testing.T) {
	_, err := ParseLabels(map[string]string{
		"com.docker.compose.service": "db",
	})
	assert.Error(t, err)

	_, err = ParseLabels(map[string]string{
		LabelManagedBy: "some-other-tool",
	})
	assert.Error(t, err)
}

// TestParseLabels_MissingFields verifies that the required session id and
// debug port labels are enforced.
func TestParseLabels_MissingFields(t *testing.T) {
	_, err := ParseLabels(map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelDebugPort: "41000",
	})
	assert.Error(t, err, "missing session id should be rejected")

	_, err = ParseLabels(map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelSessionID: "abc",
	})
	assert.Error(t, err, "missing debug port should be rejected")

	_, err = ParseLabels(map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelSessionID: "abc",
		LabelDebugPort: "not-a-port",
	})
	assert.Error(t, err, "non-numeric debug port should be rejected")
}

// TestParseLabels_BadTimestampTolerated verifies that an unparsable
// created-at label does not make a container unreclaimable.
func TestParseLabels_BadTimestampTolerated(t *testing.T) {
	parsed, err := ParseLabels(map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelSessionID: "abc",
		LabelDebugPort: "41000",
		LabelCreatedAt: "yesterday",
	})
	require.NoError(t, err)
	assert.True(t, parsed.CreatedAt.IsZero())
}

// TestContainerName verifies the session-to-container naming scheme.
func TestContainerName(t *testing.T) {
	assert.Equal(t, "flaresolverr-session-abc", ContainerName("abc"))
}
