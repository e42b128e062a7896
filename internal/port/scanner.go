package port

import (
	"fmt"
	"net"
)

// Prober checks whether a TCP port can be bound on the host. It is the
// injection point between the allocator and live OS socket state: production
// code uses Scanner, tests use a deterministic fake.
type Prober interface {
	// IsPortFree reports whether the given TCP port is currently unbound.
	IsPortFree(port int) bool
}

// Scanner checks port availability against the operating system's network
// stack. It asks the OS directly via net.Listen rather than parsing
// /proc/net/* or shelling out to `lsof`/`ss`, which may require elevated
// permissions and vary across platforms.
//
// The struct is stateless; it is defined as a struct rather than bare
// functions so it can be injected as a Prober and extended with options
// (bind address, timeout) without breaking the API.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortFree reports whether a TCP port is free on the host machine.
//
// It attempts net.Listen("tcp", ":port") and treats success as availability,
// closing the listener immediately. We bind to all interfaces (":port"
// rather than "127.0.0.1:port") because both Chrome's debug listener and
// Docker's port publishing bind 0.0.0.0, so the probe must cover the same
// address space to avoid false positives.
func (s *Scanner) IsPortFree(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// UsedPorts returns the ports within the given range that are currently
// bound by some process on the host. It is used by the `ports` CLI command
// to show operators how crowded the configured range is.
func (s *Scanner) UsedPorts(r Range) []int {
	var used []int
	for p := r.Lower; p <= r.Upper; p++ {
		if !s.IsPortFree(p) {
			used = append(used, p)
		}
	}
	return used
}
