package kernel

import (
	"sync"
	"sync/atomic"
)

// spinlock is owned by a CPU rather than a goroutine, so a lock taken by a
// scheduler can be released by the thread it switched to.
type spinlock struct {
	name   string
	mu     sync.Mutex
	holder atomic.Pointer[CPU]
}

// acquire disables interrupts and takes lk; acquiring a lock already held by c is fatal.
func (c *CPU) acquire(lk *spinlock) {
	c.pushcli()
	if c.holding(lk) {
		c.k.panic("acquire " + lk.name)
	}
	lk.mu.Lock()
	lk.holder.Store(c)
}

func (c *CPU) release(lk *spinlock) {
	if !c.holding(lk) {
		c.k.panic("release " + lk.name)
	}
	lk.holder.Store(nil)
	lk.mu.Unlock()
	c.popcli()
}

func (c *CPU) holding(lk *spinlock) bool {
	return lk.holder.Load() == c
}
