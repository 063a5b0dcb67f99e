// Package lockgate implements the Lock Gate: a single-holder,
// non-reentrant mutual-exclusion guard around mutating VM actions, with a
// safety-timeout auto-release so a driver that never confirms completion
// can't wedge the agent forever.
package lockgate

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Gate is safe for concurrent use. It is not reentrant: Lock never blocks,
// even while the gate is already held, so callers check Locked() first
// (the Request Router's VM_LOCKED rejection path does).
type Gate struct {
	maxHoldTime time.Duration

	mu     sync.Mutex
	locked bool
	timer  *time.Timer
}

func New(maxHoldTime time.Duration) *Gate {
	return &Gate{maxHoldTime: maxHoldTime}
}

// Locked reports whether the gate is currently held, without acquiring it.
func (g *Gate) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}

// Lock acquires the gate unconditionally and schedules a safety release
// after maxHoldTime. Callers needing non-blocking "try" semantics should
// check Locked() first, matching the Request Router's lock-gate check
//, which never blocks waiting for the gate to free.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.locked = true
	g.timer = time.AfterFunc(g.maxHoldTime, func() {
		zap.S().Named("lock_gate").Warnw("safety timeout released lock gate", "after", g.maxHoldTime)
		g.Unlock()
	})
}

// Unlock releases the gate and cancels the pending safety release. Safe to
// call even if the gate is already unlocked.
func (g *Gate) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.locked = false
}
