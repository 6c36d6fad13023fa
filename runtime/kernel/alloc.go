package kernel

import "fmt"

// allocthread claims an unused slot of p for tid. The table lock must be held.
// The new context enters forkret and then returns to user mode.
func (k *Kernel) allocthread(p *Proc, tid int) (int, error) {
	if tid <= 0 {
		return -1, fmt.Errorf("tid %d: %w", tid, ErrInvalidArgument)
	}
	for i := range p.threads {
		if t := &p.threads[i]; t.state != TUnused && t.tid == tid {
			k.cprintf("thread allocation error: pid %d tid %d duplicate", p.pid, tid)
			return -1, fmt.Errorf("pid %d tid %d: %w", p.pid, tid, ErrDuplicateID)
		}
	}
	idx := -1
	for i := range p.threads {
		if p.threads[i].state == TUnused {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, fmt.Errorf("pid %d: thread table full: %w", p.pid, ErrResourceExhausted)
	}
	t := &p.threads[idx]
	t.state = TEmbryo
	t.tid = tid

	kstack, err := k.mem.Kalloc()
	if err != nil {
		t.state = TUnused
		t.tid = 0
		return -1, fmt.Errorf("pid %d: kernel stack: %w", p.pid, ErrResourceExhausted)
	}
	t.kstack = kstack
	t.tf = &TrapFrame{}
	t.context = k.newContext(func() {
		k.forkret(p)
		k.trapret(p)
	})
	return idx, nil
}

// freethread reclaims slot i of p. The table lock must be held.
func (k *Kernel) freethread(p *Proc, i int) {
	t := &p.threads[i]
	if t.kstack != nil {
		k.mem.Kfree(t.kstack)
	}
	k.dropContext(t.context)
	t.kstack = nil
	t.context = nil
	t.tf = nil
	t.channel = nil
	t.state = TUnused
	t.tid = 0
}

// allocproc looks in the process table for an unused entry, marks it embryo
// and gives it a first thread with tid 1.
func (k *Kernel) allocproc(c *CPU) (*Proc, error) {
	c.acquire(&k.ptable.lock)
	defer c.release(&k.ptable.lock)
	var p *Proc
	for i := range k.ptable.proc {
		if k.ptable.proc[i].state == Unused {
			p = &k.ptable.proc[i]
			break
		}
	}
	if p == nil {
		return nil, fmt.Errorf("process table full: %w", ErrResourceExhausted)
	}
	p.state = Embryo
	p.pid = k.nextpid
	k.nextpid++

	idx, err := k.allocthread(p, 1)
	if err != nil {
		p.state = Unused
		p.pid = 0
		return nil, err
	}
	p.tidx = idx
	return p, nil
}

// unallocproc reverts a process that never became runnable.
func (k *Kernel) unallocproc(c *CPU, p *Proc) {
	c.acquire(&k.ptable.lock)
	defer c.release(&k.ptable.lock)
	for i := range p.threads {
		if p.threads[i].state != TUnused {
			if tf := p.threads[i].tf; tf != nil {
				k.text.unlinkOnce(tf.EIP)
			}
			k.freethread(p, i)
		}
	}
	if p.pgdir != nil {
		k.vm.Free(p.pgdir)
		p.pgdir = nil
	}
	p.pid = 0
	p.state = Unused
}
