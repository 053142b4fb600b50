package testutil

import (
	"fmt"
	"sync/atomic"
	"time"
)

// FakeClock is a library.Clock returning a settable instant.
type FakeClock struct {
	Current time.Time
}

// NewFakeClock creates a FakeClock starting at the given instant.
func NewFakeClock(at time.Time) *FakeClock {
	return &FakeClock{Current: at}
}

func (c *FakeClock) Now() time.Time { return c.Current }

// Advance moves the clock forward.
func (c *FakeClock) Advance(d time.Duration) {
	c.Current = c.Current.Add(d)
}

// SequentialIDGenerator produces ids id-0001, id-0002, ... so tests get
// deterministic ordering and tie-breaks.
type SequentialIDGenerator struct {
	n atomic.Int64
}

func (g *SequentialIDGenerator) New() string {
	return fmt.Sprintf("id-%04d", g.n.Add(1))
}
