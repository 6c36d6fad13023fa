package kernel

import "time"

// CPU is a simulated processor: the scheduler loop plus the interrupt state of
// whichever execution currently owns it.
type CPU struct {
	id        int
	k         *Kernel
	scheduler *Context  // swtch here to enter scheduler
	ncli      int       // depth of pushcli nesting
	intena    bool      // were interrupts enabled before pushcli?
	intr      bool      // interrupt enable flag
	proc      *Proc     // the process running on this cpu or nil
	kick      chan struct{}
	next      time.Time // next timer interrupt
}

// ID returns the cpu number; the console context is -1.
func (c *CPU) ID() int { return c.id }

func (c *CPU) cli() { c.intr = false }

func (c *CPU) sti() { c.intr = true }

// pushcli/popcli are like cli/sti except that they are matched:
// it takes two popcli to undo two pushcli.
func (c *CPU) pushcli() {
	enabled := c.intr
	c.cli()
	if c.ncli == 0 {
		c.intena = enabled
	}
	c.ncli++
}

func (c *CPU) popcli() {
	if c.intr {
		c.k.panic("popcli - interruptible")
	}
	c.ncli--
	if c.ncli < 0 {
		c.k.panic("popcli")
	}
	if c.ncli == 0 && c.intena {
		c.sti()
	}
}

// nudge wakes the cpu if it is idle.
func (c *CPU) nudge() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}
