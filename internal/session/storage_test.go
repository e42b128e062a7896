package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Barresider/FlareSolverr/internal/browser"
	"github.com/Barresider/FlareSolverr/internal/port"
)

// openProber treats every port as free so allocator behavior is fully
// deterministic in tests.
type openProber struct{}

func (openProber) IsPortFree(int) bool { return true }

// fakeBrowser records teardown so tests can assert that destroy paths
// actually stop the browser.
type fakeBrowser struct {
	port    int
	mu      sync.Mutex
	stopped bool
}

func (b *fakeBrowser) DebugPort() int { return b.port }

func (b *fakeBrowser) Stop(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	return nil
}

func (b *fakeBrowser) isStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

// fakeLauncher hands out fakeBrowsers and can be told to fail, which
// exercises the port-release-on-launch-failure path.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []*fakeBrowser
	failWith error
}

func (l *fakeLauncher) Launch(_ context.Context, _ string, debugPort int) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return nil, l.failWith
	}
	b := &fakeBrowser{port: debugPort}
	l.launched = append(l.launched, b)
	return b, nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func newTestStorage(t *testing.T, upper int) (*Storage, *fakeLauncher) {
	t.Helper()

	alloc, err := port.NewAllocator(port.Range{Lower: 41000, Upper: upper}, openProber{})
	require.NoError(t, err)

	launcher := &fakeLauncher{}
	return NewStorage(alloc, launcher, zerolog.Nop()), launcher
}

// TestCreate verifies the basic allocate-launch-record path.
func TestCreate(t *testing.T) {
	s, launcher := newTestStorage(t, 41010)
	ctx := context.Background()

	sess, created, err := s.Create(ctx, "alpha", CreateOptions{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alpha", sess.ID)
	assert.Equal(t, 41000, sess.DebugPort, "first session gets the lowest port")
	assert.Equal(t, "http://localhost:41000", sess.DevtoolsURL)
	assert.Equal(t, 1, launcher.launchCount())
	assert.Equal(t, 1, s.Count())
}

// TestCreate_GeneratesID verifies that an empty ID gets a generated one.
func TestCreate_GeneratesID(t *testing.T) {
	s, _ := newTestStorage(t, 41010)

	sess, created, err := s.Create(context.Background(), "", CreateOptions{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, s.Exists(sess.ID))
}

// TestCreate_InvalidID verifies that malformed session IDs are rejected
// before any port is allocated.
func TestCreate_InvalidID(t *testing.T) {
	s, launcher := newTestStorage(t, 41010)

	_, _, err := s.Create(context.Background(), "../escape", CreateOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, launcher.launchCount())
	assert.Equal(t, 0, s.Allocator().Count())
}

// TestCreate_Idempotent verifies that creating an existing session returns
// it instead of launching a second browser.
func TestCreate_Idempotent(t *testing.T) {
	s, launcher := newTestStorage(t, 41010)
	ctx := context.Background()

	first, created, err := s.Create(ctx, "alpha", CreateOptions{})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.Create(ctx, "alpha", CreateOptions{})
	require.NoError(t, err)
	assert.False(t, created, "second create must return the existing session")
	assert.Equal(t, first.DebugPort, second.DebugPort)
	assert.Equal(t, 1, launcher.launchCount())
}

// TestCreate_LaunchFailureReleasesPort verifies that a failed browser
// launch returns the allocated port, leaving the free set untouched.
func TestCreate_LaunchFailureReleasesPort(t *testing.T) {
	s, launcher := newTestStorage(t, 41010)
	ctx := context.Background()

	launcher.failWith = errors.New("browser exploded")
	_, _, err := s.Create(ctx, "alpha", CreateOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, s.Allocator().Count(), "port must be released after launch failure")
	assert.False(t, s.Exists("alpha"))

	launcher.failWith = nil
	sess, created, err := s.Create(ctx, "alpha", CreateOptions{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 41000, sess.DebugPort, "released port is reusable immediately")
}

// TestCreate_Exhaustion verifies the error when every port in the range is
// taken by a session.
func TestCreate_Exhaustion(t *testing.T) {
	s, _ := newTestStorage(t, 41001) // two ports
	ctx := context.Background()

	_, _, err := s.Create(ctx, "a", CreateOptions{})
	require.NoError(t, err)
	_, _, err = s.Create(ctx, "b", CreateOptions{})
	require.NoError(t, err)

	_, _, err = s.Create(ctx, "c", CreateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrNoPortsAvailable)
}

// TestDestroy verifies teardown: browser stopped, port released, repeat
// destroy a no-op.
func TestDestroy(t *testing.T) {
	s, launcher := newTestStorage(t, 41010)
	ctx := context.Background()

	sess, _, err := s.Create(ctx, "alpha", CreateOptions{})
	require.NoError(t, err)

	assert.True(t, s.Destroy(ctx, "alpha"))
	assert.True(t, launcher.launched[0].isStopped(), "destroy must stop the browser")
	_, held := s.Allocator().Lookup("alpha")
	assert.False(t, held, "destroy must release the debug port")
	assert.NotZero(t, sess.DebugPort)
	assert.False(t, s.Exists("alpha"))

	assert.False(t, s.Destroy(ctx, "alpha"), "destroying twice is a no-op")
	assert.False(t, s.Destroy(ctx, "never-existed"))
}

// TestGet_RecreatesUnhealthy verifies that an unhealthy session is replaced
// with a fresh browser under the same ID.
func TestGet_RecreatesUnhealthy(t *testing.T) {
	s, launcher := newTestStorage(t, 41010)
	ctx := context.Background()

	_, _, err := s.Get(ctx, "alpha", 0)
	require.NoError(t, err)
	s.MarkUnhealthy("alpha")

	sess, created, err := s.Get(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.True(t, created, "unhealthy session must be recreated")
	assert.False(t, sess.Unhealthy)
	assert.Equal(t, 2, launcher.launchCount())
	assert.True(t, launcher.launched[0].isStopped(), "old browser must be stopped")
	assert.Equal(t, 1, s.Count())
}

// TestGet_RecreatesExpiredLifetime verifies TTL-based recreation.
func TestGet_RecreatesExpiredLifetime(t *testing.T) {
	s, launcher := newTestStorage(t, 41010)
	ctx := context.Background()

	_, _, err := s.Get(ctx, "alpha", 0)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, created, err := s.Get(ctx, "alpha", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, created, "session past its ttl must be recreated")
	assert.Equal(t, 2, launcher.launchCount())

	_, created, err = s.Get(ctx, "alpha", time.Hour)
	require.NoError(t, err)
	assert.False(t, created, "session within its ttl must be reused")
}

// TestCleanupExpired verifies that only sessions idle past their timeout
// are destroyed.
func TestCleanupExpired(t *testing.T) {
	s, _ := newTestStorage(t, 41010)
	ctx := context.Background()

	_, _, err := s.Create(ctx, "short", CreateOptions{IdleTimeout: time.Millisecond})
	require.NoError(t, err)
	_, _, err = s.Create(ctx, "forever", CreateOptions{})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, s.CleanupExpired(ctx))
	assert.False(t, s.Exists("short"))
	assert.True(t, s.Exists("forever"), "sessions without an idle timeout never expire")

	assert.Equal(t, 0, s.CleanupExpired(ctx))
}

// TestCleanupExpired_TouchKeepsAlive verifies that activity resets the idle
// clock.
func TestCleanupExpired_TouchKeepsAlive(t *testing.T) {
	s, _ := newTestStorage(t, 41010)
	ctx := context.Background()

	_, _, err := s.Create(ctx, "busy", CreateOptions{IdleTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	s.Touch("busy")
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 0, s.CleanupExpired(ctx), "touched session is not idle")
	assert.True(t, s.Exists("busy"))
}

// TestJanitor verifies the background sweep end to end.
func TestJanitor(t *testing.T) {
	s, _ := newTestStorage(t, 41010)
	ctx := context.Background()

	_, _, err := s.Create(ctx, "ephemeral", CreateOptions{IdleTimeout: time.Millisecond})
	require.NoError(t, err)

	s.StartJanitor(5 * time.Millisecond)
	defer s.StopJanitor()

	require.Eventually(t, func() bool {
		return !s.Exists("ephemeral")
	}, time.Second, 5*time.Millisecond, "janitor must destroy the idle session")
}

// TestList verifies stable, sorted snapshots.
func TestList(t *testing.T) {
	s, _ := newTestStorage(t, 41010)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, _, err := s.Create(ctx, id, CreateOptions{})
		require.NoError(t, err)
	}

	sessions := s.List()
	require.Len(t, sessions, 3)
	assert.Equal(t, "alpha", sessions[0].ID)
	assert.Equal(t, "bravo", sessions[1].ID)
	assert.Equal(t, "charlie", sessions[2].ID)
}

// TestDescribe verifies snapshot lookup by ID.
func TestDescribe(t *testing.T) {
	s, _ := newTestStorage(t, 41010)

	_, _, err := s.Create(context.Background(), "alpha", CreateOptions{})
	require.NoError(t, err)

	sess, ok := s.Describe("alpha")
	require.True(t, ok)
	assert.Equal(t, 41000, sess.DebugPort)

	_, ok = s.Describe("missing")
	assert.False(t, ok)
}

// TestShutdown verifies that shutdown stops every browser and empties the
// allocator, leaving the storage reusable.
func TestShutdown(t *testing.T) {
	s, launcher := newTestStorage(t, 41010)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, _, err := s.Create(ctx, id, CreateOptions{})
		require.NoError(t, err)
	}

	s.Shutdown(ctx)

	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0, s.Allocator().Count())
	for _, b := range launcher.launched {
		assert.True(t, b.isStopped())
	}

	sess, created, err := s.Create(ctx, "after", CreateOptions{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 41000, sess.DebugPort, "storage is fresh after shutdown")
}

// TestCreate_Concurrent verifies that concurrent creates of distinct
// sessions each get a unique port and exactly one browser.
func TestCreate_Concurrent(t *testing.T) {
	s, launcher := newTestStorage(t, 41063)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	ports := make(chan int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, _, err := s.Create(ctx, string(rune('a'+i%26))+string(rune('0'+i/26)), CreateOptions{})
			assert.NoError(t, err)
			ports <- sess.DebugPort
		}(i)
	}
	wg.Wait()
	close(ports)

	seen := make(map[int]bool)
	for p := range ports {
		assert.False(t, seen[p], "port %d handed out twice", p)
		seen[p] = true
	}
	assert.Equal(t, n, launcher.launchCount())
}
