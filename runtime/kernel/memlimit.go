package kernel

import "fmt"

// setMemoryLimit caps the size of pid at limit bytes; 0 removes the cap.
func (k *Kernel) setMemoryLimit(c *CPU, pid, limit int) error {
	c.acquire(&k.ptable.lock)
	defer c.release(&k.ptable.lock)
	p := k.lookup(pid)
	if p == nil {
		return fmt.Errorf("memlim %d: %w", pid, ErrNotFound)
	}
	switch {
	case limit < 0:
		k.cprintf("memory limit must be positive")
		return fmt.Errorf("memlim %d %d: %w", pid, limit, ErrInvalidArgument)
	case limit != 0 && limit < int(p.sz):
		k.cprintf("memory limit can't be smaller than allocated size")
		return fmt.Errorf("memlim %d %d below size %d: %w", pid, limit, p.sz, ErrInvalidArgument)
	}
	p.memlimit = limit
	k.publish(Lifecycle{Type: EventMemLimit, PID: pid, Name: p.name, Value: limit})
	return nil
}
