package port

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber is a deterministic Prober substitute. Ports listed in busy are
// reported as externally bound; everything else is free. Using a fake keeps
// these tests independent of live network state on the test machine.
type fakeProber struct {
	mu   sync.Mutex
	busy map[int]bool
}

func newFakeProber(busyPorts ...int) *fakeProber {
	busy := make(map[int]bool, len(busyPorts))
	for _, p := range busyPorts {
		busy[p] = true
	}
	return &fakeProber{busy: busy}
}

func (f *fakeProber) IsPortFree(port int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.busy[port]
}

func mustAllocator(t *testing.T, r Range, p Prober) *Allocator {
	t.Helper()
	a, err := NewAllocator(r, p)
	require.NoError(t, err)
	return a
}

// TestNewAllocator_InvalidRange verifies that malformed ranges are rejected
// at construction time rather than surfacing later during allocation.
func TestNewAllocator_InvalidRange(t *testing.T) {
	_, err := NewAllocator(Range{Lower: 41100, Upper: 41000}, newFakeProber())
	assert.Error(t, err, "inverted bounds should be rejected")

	_, err = NewAllocator(Range{Lower: 80, Upper: 8080}, newFakeProber())
	assert.Error(t, err, "privileged lower bound should be rejected")

	_, err = NewAllocator(Range{Lower: 41000, Upper: 70000}, newFakeProber())
	assert.Error(t, err, "upper bound beyond 65535 should be rejected")

	_, err = NewAllocator(Range{Lower: 41000, Upper: 41010}, nil)
	assert.Error(t, err, "nil prober should be rejected")
}

// TestAllocate_Deterministic verifies the ascending scan: the first session
// gets the lower bound, the next session the following port, and so on.
func TestAllocate_Deterministic(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 41000, Upper: 41010}, newFakeProber())

	p1, err := a.Allocate("a")
	require.NoError(t, err)
	assert.Equal(t, 41000, p1, "first allocation starts at the lower bound")

	p2, err := a.Allocate("b")
	require.NoError(t, err)
	assert.Equal(t, 41001, p2)

	p3, err := a.Allocate("c")
	require.NoError(t, err)
	assert.Equal(t, 41002, p3)
}

// TestAllocate_SkipsExternallyBoundPorts verifies that a port bound by a
// foreign process is skipped silently and the next candidate is used.
func TestAllocate_SkipsExternallyBoundPorts(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 41000, Upper: 41010}, newFakeProber(41000, 41002))

	p1, err := a.Allocate("a")
	require.NoError(t, err)
	assert.Equal(t, 41001, p1, "41000 is externally bound, scan should land on 41001")

	p2, err := a.Allocate("b")
	require.NoError(t, err)
	assert.Equal(t, 41003, p2, "41002 is externally bound, scan should land on 41003")
}

// TestAllocate_DuplicateSession verifies that a session holding a port
// cannot be granted a second one without releasing first.
func TestAllocate_DuplicateSession(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 41000, Upper: 41010}, newFakeProber())

	_, err := a.Allocate("a")
	require.NoError(t, err)

	_, err = a.Allocate("a")
	assert.ErrorIs(t, err, ErrDuplicateSession)

	// After releasing, the same session may allocate again.
	a.Release("a")
	p, err := a.Allocate("a")
	require.NoError(t, err)
	assert.Equal(t, 41000, p)
}

// TestAllocate_EmptySessionID verifies the non-empty precondition.
func TestAllocate_EmptySessionID(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 41000, Upper: 41010}, newFakeProber())

	_, err := a.Allocate("")
	assert.Error(t, err)
}

// TestAllocate_Exhaustion walks the documented scenario: a range of three
// ports serves exactly three sessions, the fourth allocation fails, and a
// release makes the freed port available to the waiting session.
func TestAllocate_Exhaustion(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 10000, Upper: 10002}, newFakeProber())

	pa, err := a.Allocate("a")
	require.NoError(t, err)
	assert.Equal(t, 10000, pa)

	pb, err := a.Allocate("b")
	require.NoError(t, err)
	assert.Equal(t, 10001, pb)

	pc, err := a.Allocate("c")
	require.NoError(t, err)
	assert.Equal(t, 10002, pc)

	_, err = a.Allocate("d")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPortsAvailable)

	// The typed error carries the operator-facing detail.
	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, Range{Lower: 10000, Upper: 10002}, exhausted.Range)
	assert.Equal(t, 3, exhausted.Allocated)
	assert.Contains(t, exhausted.Error(), "10000-10002")

	// Release "b" and the waiting session receives the freed port.
	a.Release("b")
	pd, err := a.Allocate("d")
	require.NoError(t, err)
	assert.Equal(t, 10001, pd)
}

// TestRelease_Idempotent verifies that releasing an unknown session or
// releasing twice is a no-op and never disturbs other allocations.
func TestRelease_Idempotent(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 41000, Upper: 41010}, newFakeProber())

	a.Release("never-allocated")

	_, err := a.Allocate("a")
	require.NoError(t, err)

	a.Release("a")
	a.Release("a")

	assert.Equal(t, 0, a.Count())
}

// TestAllocateRelease_RoundTrip verifies that an allocate immediately
// followed by a release restores the prior free-set state: the next
// allocation picks the same port again.
func TestAllocateRelease_RoundTrip(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 41000, Upper: 41010}, newFakeProber())

	p1, err := a.Allocate("a")
	require.NoError(t, err)
	a.Release("a")

	p2, err := a.Allocate("b")
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "release must return the port to the free set")
	assert.Equal(t, 1, a.Count())
}

// TestLookup verifies the read-only ownership query.
func TestLookup(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 41000, Upper: 41010}, newFakeProber())

	_, ok := a.Lookup("a")
	assert.False(t, ok, "unknown session has no allocation")

	p, err := a.Allocate("a")
	require.NoError(t, err)

	got, ok := a.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, p, got)

	a.Release("a")
	_, ok = a.Lookup("a")
	assert.False(t, ok, "lookup after release reports no allocation")
}

// TestShutdown verifies that shutdown drops every record and the allocator
// serves the full range again afterwards.
func TestShutdown(t *testing.T) {
	a := mustAllocator(t, Range{Lower: 41000, Upper: 41002}, newFakeProber())

	for _, id := range []string{"a", "b", "c"} {
		_, err := a.Allocate(id)
		require.NoError(t, err)
	}
	require.Equal(t, 3, a.Count())

	a.Shutdown()
	assert.Equal(t, 0, a.Count())

	// The full range is available again, starting from the lower bound.
	p, err := a.Allocate("fresh")
	require.NoError(t, err)
	assert.Equal(t, 41000, p)
}

// TestAllocate_Concurrent hammers the allocator from many goroutines and
// verifies the uniqueness invariant: no two sessions ever hold the same
// port, and every granted port falls inside the range.
func TestAllocate_Concurrent(t *testing.T) {
	const workers = 64
	r := Range{Lower: 41000, Upper: 41000 + workers - 1}
	a := mustAllocator(t, r, newFakeProber())

	var wg sync.WaitGroup
	ports := make([]int, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ports[i], errs[i] = a.Allocate(fmt.Sprintf("session-%d", i))
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i], "range has exactly one port per worker, all must succeed")
		assert.True(t, r.Contains(ports[i]), "port %d outside configured range", ports[i])
		assert.False(t, seen[ports[i]], "port %d handed out twice", ports[i])
		seen[ports[i]] = true
	}
}

// TestRange_Helpers covers the Range value-type helpers used in error
// messages and config validation.
func TestRange_Helpers(t *testing.T) {
	r := Range{Lower: 41000, Upper: 41004}

	assert.Equal(t, 5, r.Size())
	assert.True(t, r.Contains(41000))
	assert.True(t, r.Contains(41004))
	assert.False(t, r.Contains(40999))
	assert.False(t, r.Contains(41005))
	assert.Equal(t, "41000-41004", r.String())

	single := Range{Lower: 9222, Upper: 9222}
	assert.NoError(t, single.Validate(), "single-port range is legal")
	assert.Equal(t, 1, single.Size())
}
