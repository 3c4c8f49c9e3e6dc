package core

// clock.go – the Clock capability (spec.md §5, "Clocks"). All time
// comparisons inside the core go through this interface so that account
// frame timestamps, HTLC expiry checks on lock cancel, and the runtime's
// ScheduleAfter timers and tick timing are deterministic and testable.
//
// The teacher has no equivalent abstraction (core/state_channel.go calls
// time.Now() directly). This wires the pack's previously-unused
// github.com/benbjohnson/clock dependency into a genuine role.

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock provides monotonic timing for timeouts and wall-clock timestamps for
// user-facing display, per spec.md §5.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) *clock.Timer
	Since(t time.Time) time.Duration
}

// realClock wraps clock.Clock (the real-time implementation) to satisfy
// Clock.
type realClock struct {
	clock.Clock
}

// NewRealClock returns the production Clock backed by wall-clock time.
func NewRealClock() Clock { return realClock{Clock: clock.New()} }

// NewMockClock returns a controllable clock for deterministic tests,
// mirroring the teacher's preference for hand-rolled test doubles over a
// mocking framework.
func NewMockClock() *clock.Mock { return clock.NewMock() }
