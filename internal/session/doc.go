// Package session creates, stores and tears down browser sessions.
//
// The storage pairs every session with a debug port drawn from the
// allocator and a browser instance from the configured launcher. Create is
// idempotent: asking for an existing session ID returns the live session
// instead of launching a second browser. Destroy is a no-op for unknown
// IDs so callers can tear down unconditionally.
//
// A background janitor destroys sessions that stay idle past their
// per-session timeout, mirroring how abandoned automation clients are
// cleaned up.
package session
