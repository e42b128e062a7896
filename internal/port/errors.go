package port

import (
	"errors"
	"fmt"
)

// ErrDuplicateSession is returned by Allocate when the session already holds
// a port. This is a usage error by the caller: a session must release its
// current port before it can be granted another one.
var ErrDuplicateSession = errors.New("session already holds a debug port")

// ErrNoPortsAvailable is the sentinel matched by errors.Is when the
// configured range is exhausted. The concrete error returned by Allocate is
// an *ExhaustedError carrying the operator-facing detail.
var ErrNoPortsAvailable = errors.New("no debug ports available")

// ExhaustedError reports that a full scan of the configured range found no
// usable port. It carries the range bounds and the live allocation count so
// an operator can tell whether to enlarge the range or hunt down foreign
// processes squatting on it.
type ExhaustedError struct {
	// Range is the configured eligible port interval.
	Range Range

	// Allocated is the number of ports held by live sessions at the time
	// of the failed scan. When Allocated is well below the range size, the
	// remainder is bound by other processes on the host.
	Allocated int
}

// Error satisfies the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no debug ports available in range %s (%d of %d allocated to sessions)",
		e.Range, e.Allocated, e.Range.Size())
}

// Is reports a match against the ErrNoPortsAvailable sentinel so callers
// can use errors.Is without caring about the concrete type.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrNoPortsAvailable
}
