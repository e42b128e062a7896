package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseDriver verifies parsing of the supported launch backends,
// including case normalization and rejection of unknown values.
func TestParseDriver(t *testing.T) {
	d, err := ParseDriver("process")
	require.NoError(t, err)
	assert.Equal(t, DriverProcess, d)

	d, err = ParseDriver("Docker")
	require.NoError(t, err)
	assert.Equal(t, DriverDocker, d)

	_, err = ParseDriver("selenium")
	assert.Error(t, err, "unknown driver should be rejected")
	assert.Contains(t, err.Error(), "invalid browser driver")
}

// TestDriverIsValid covers the enum validity check directly.
func TestDriverIsValid(t *testing.T) {
	assert.True(t, DriverProcess.IsValid())
	assert.True(t, DriverDocker.IsValid())
	assert.False(t, Driver("chrome").IsValid())
	assert.False(t, Driver("").IsValid())
}

// TestValidateSessionID verifies the accepted identifier shapes: UUIDs,
// plain names, and names with the permitted separators.
func TestValidateSessionID(t *testing.T) {
	valid := []string{
		"a",
		"session-1",
		"f47ac10b-58cc-4372-a567-0e02b2c3d479",
		"user.scraper_2",
	}
	for _, id := range valid {
		assert.NoError(t, ValidateSessionID(id), "id %q should be valid", id)
	}

	invalid := []string{
		"",
		"-leading-hyphen",
		".leading-dot",
		"has space",
		"has/slash",
	}
	for _, id := range invalid {
		assert.Error(t, ValidateSessionID(id), "id %q should be rejected", id)
	}
}

// TestValidateSessionID_Length verifies the length bound on identifiers.
func TestValidateSessionID_Length(t *testing.T) {
	long := make([]byte, maxSessionIDLength+1)
	for i := range long {
		long[i] = 'a'
	}
	err := ValidateSessionID(string(long))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")

	// Exactly at the bound is still accepted.
	assert.NoError(t, ValidateSessionID(string(long[:maxSessionIDLength])))
}

// TestSessionExpired verifies idle-timeout expiry semantics: sessions
// without a timeout never expire, sessions past their timeout do, and
// Touch resets the inactivity clock.
func TestSessionExpired(t *testing.T) {
	s := &Session{
		ID:           "test",
		DebugPort:    41000,
		CreatedAt:    time.Now().Add(-time.Hour),
		LastActivity: time.Now().Add(-time.Hour),
	}

	assert.False(t, s.Expired(), "session without idle timeout never expires")

	s.IdleTimeout = 30 * time.Minute
	assert.True(t, s.Expired(), "an hour idle exceeds a 30m timeout")

	s.Touch()
	assert.False(t, s.Expired(), "touch resets the inactivity clock")
}

// TestSessionLifetime verifies that lifetime is measured from creation,
// independent of activity.
func TestSessionLifetime(t *testing.T) {
	s := &Session{
		ID:           "test",
		CreatedAt:    time.Now().Add(-2 * time.Hour),
		LastActivity: time.Now(),
	}

	assert.GreaterOrEqual(t, s.Lifetime(), 2*time.Hour)
	assert.Less(t, s.IdleFor(), time.Minute)
}

// TestCLIErrorUnwrap verifies the error wrapping chain used by the CLI
// layer to map domain errors onto exit codes.
func TestCLIErrorUnwrap(t *testing.T) {
	underlying := assert.AnError
	err := WrapCLIError(ExitPortExhausted, "no ports left", underlying)

	assert.Equal(t, ExitPortExhausted, err.Code)
	assert.Contains(t, err.Error(), "no ports left")
	assert.ErrorIs(t, err, underlying)

	bare := NewCLIError(ExitConfigError, "bad range")
	assert.Equal(t, "bad range", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
