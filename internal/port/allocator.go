package port

import (
	"fmt"
	"sync"
)

const (
	// minPort is the lowest port the allocator will accept in a range.
	// Ports below 1024 require elevated privileges on most systems and are
	// never sensible for browser debug endpoints.
	minPort = 1024

	// maxPort is the highest valid TCP port number (2^16 - 1).
	maxPort = 65535
)

// Range is the inclusive interval of TCP ports eligible for allocation.
type Range struct {
	// Lower is the first eligible port.
	Lower int `json:"lower"`

	// Upper is the last eligible port.
	Upper int `json:"upper"`
}

// Validate checks that the range is ordered and within the usable port space.
func (r Range) Validate() error {
	if r.Lower < minPort || r.Lower > maxPort {
		return fmt.Errorf("range lower bound %d out of range (%d-%d)", r.Lower, minPort, maxPort)
	}
	if r.Upper < minPort || r.Upper > maxPort {
		return fmt.Errorf("range upper bound %d out of range (%d-%d)", r.Upper, minPort, maxPort)
	}
	if r.Lower > r.Upper {
		return fmt.Errorf("range lower bound %d exceeds upper bound %d", r.Lower, r.Upper)
	}
	return nil
}

// Size returns the number of ports in the range.
func (r Range) Size() int {
	return r.Upper - r.Lower + 1
}

// Contains reports whether the port falls within the range.
func (r Range) Contains(port int) bool {
	return port >= r.Lower && port <= r.Upper
}

// String returns a human-readable representation, e.g. "41000-41100".
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Lower, r.Upper)
}

// Allocator hands out remote-debugging ports to browser sessions from a
// configured range and tracks the ownership for each session's lifetime.
//
// Invariants:
//   - at most one live allocation per port (no two sessions share a port)
//   - at most one live allocation per session (release before re-allocate)
//   - every allocated port falls within the configured range
//
// All state lives in memory and is guarded by a single mutex. The free set
// is derived: a port is free when it is inside the range, absent from the
// ownership map, and not bound by a foreign process at probe time.
type Allocator struct {
	mu sync.RWMutex

	// rng is the configured eligible port interval.
	rng Range

	// prober checks live OS socket state so externally-bound ports are
	// skipped instead of handed to a session that could never bind them.
	prober Prober

	// bySession maps session ID to its allocated port.
	bySession map[string]int

	// byPort is the inverse map, used to skip held ports during the scan
	// and to keep the uniqueness invariant cheap to enforce.
	byPort map[int]string
}

// NewAllocator creates an Allocator over the given range. The prober must
// not be nil; pass NewScanner() for production use.
func NewAllocator(r Range, prober Prober) (*Allocator, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid debug-port range: %w", err)
	}
	if prober == nil {
		return nil, fmt.Errorf("prober must not be nil")
	}
	return &Allocator{
		rng:       r,
		prober:    prober,
		bySession: make(map[string]int),
		byPort:    make(map[int]string),
	}, nil
}

// Allocate reserves a debug port for the given session and records the
// ownership. The scan walks the range in ascending order from the lower
// bound and picks the first port that is neither held by another session
// nor bound by a foreign process; externally-bound ports are skipped
// silently, they are a transient condition rather than an error.
//
// Returns ErrDuplicateSession when the session already holds a port, and
// an *ExhaustedError (matching errors.Is(err, ErrNoPortsAvailable)) when
// the full scan finds no candidate.
func (a *Allocator) Allocate(sessionID string) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("session id must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if held, ok := a.bySession[sessionID]; ok {
		return 0, fmt.Errorf("session %q already holds port %d: %w", sessionID, held, ErrDuplicateSession)
	}

	for candidate := a.rng.Lower; candidate <= a.rng.Upper; candidate++ {
		if _, held := a.byPort[candidate]; held {
			continue
		}
		// The OS probe runs inside the critical section. It is a single
		// bounded bind attempt, and holding the lock closes the window
		// where two concurrent Allocate calls could pick the same port.
		if !a.prober.IsPortFree(candidate) {
			continue
		}

		a.bySession[sessionID] = candidate
		a.byPort[candidate] = sessionID
		return candidate, nil
	}

	return 0, &ExhaustedError{Range: a.rng, Allocated: len(a.bySession)}
}

// Release returns the session's port to the free set. Releasing a session
// with no active allocation is a no-op, not an error, so callers can tear
// down unconditionally.
func (a *Allocator) Release(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	port, ok := a.bySession[sessionID]
	if !ok {
		return
	}
	delete(a.bySession, sessionID)
	delete(a.byPort, port)
}

// Lookup returns the port currently assigned to the session. The second
// return value is false when the session holds no allocation.
func (a *Allocator) Lookup(sessionID string) (int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	port, ok := a.bySession[sessionID]
	return port, ok
}

// Shutdown releases every outstanding allocation. The allocator remains
// usable afterwards, behaving as if freshly initialized over the same range.
func (a *Allocator) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.bySession = make(map[string]int)
	a.byPort = make(map[int]string)
}

// Count returns the number of live allocations.
func (a *Allocator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.bySession)
}

// Range returns the configured eligible port interval.
func (a *Allocator) Range() Range {
	return a.rng
}
