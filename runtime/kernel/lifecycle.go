package kernel

import (
	"fmt"

	"github.com/viant/kproc/service/vm"
)

// userinit sets up the first user process. Its initcode execs the init program.
func (k *Kernel) userinit(c *CPU) {
	if k.initproc != nil {
		k.panic("userinit: init exists")
	}
	p, err := k.allocproc(c)
	if err != nil {
		k.panic("userinit: " + err.Error())
	}
	k.initproc = p
	pgdir, err := k.vm.Setup()
	if err != nil {
		k.panic("userinit: out of memory?")
	}
	if _, err = k.vm.Grow(pgdir, 0, PGSIZE); err != nil {
		k.panic("userinit: out of memory?")
	}
	// fake return PC, arg 0
	if err = k.vm.CopyOut(pgdir, PGSIZE-8, fakeRet, 0); err != nil {
		k.panic("userinit: " + err.Error())
	}
	p.pgdir = pgdir

	tf := p.current().tf
	*tf = TrapFrame{}
	setUserSegments(tf)
	tf.ESP = PGSIZE - 8
	tf.EIP = k.text.Link("initcode", k.initcode)
	p.cwd = k.files.Namei("/")

	// this assignment to p.state lets other cores run this process.
	c.acquire(&k.ptable.lock)
	p.sz = PGSIZE
	p.stacksize = k.config.StackPages
	p.name = "initcode"
	p.state = Runnable
	p.current().state = TRunnable
	c.release(&k.ptable.lock)
}

// initcode is the first user routine; it only returns if exec fails.
func (k *Kernel) initcode(u *User, _ uint32) {
	if err := u.Exec(k.config.InitPath, k.config.StackPages); err != nil {
		u.Printf("init: exec %s failed: %v", k.config.InitPath, err)
	}
	u.Exit()
}

func setUserSegments(tf *TrapFrame) {
	tf.CS = (segUCode << 3) | dplUser
	tf.DS = (segUData << 3) | dplUser
	tf.ES = tf.DS
	tf.SS = tf.DS
	tf.EFlags = flagIF
}

// growproc grows the current process's memory by n bytes.
func (k *Kernel) growproc(p *Proc, n int) error {
	c := p.cpu
	c.acquire(&k.ptable.lock)
	sz, limit := p.sz, p.memlimit
	c.release(&k.ptable.lock)
	if limit != 0 && int(sz)+n > limit {
		k.cprintf("memory limit exceeded")
		return fmt.Errorf("sbrk %d: %w", n, ErrLimitExceeded)
	}
	var err error
	switch {
	case n > 0:
		sz, err = k.vm.Grow(p.pgdir, sz, sz+uint32(n))
	case n < 0:
		if uint32(-n) > sz {
			return fmt.Errorf("sbrk %d: %w", n, ErrInvalidArgument)
		}
		sz, err = k.vm.Shrink(p.pgdir, sz, sz-uint32(-n))
	}
	if err != nil {
		return fmt.Errorf("sbrk %d: %w", n, ErrResourceExhausted)
	}
	c.acquire(&k.ptable.lock)
	p.sz = sz
	c.release(&k.ptable.lock)
	k.vm.Activate(c.id, p.pgdir)
	return nil
}

// fork creates a new process copying p. The child's current thread resumes
// in child with EAX = 0.
func (k *Kernel) fork(p *Proc, child Routine) (int, error) {
	if child == nil {
		return -1, fmt.Errorf("fork: no child routine: %w", ErrInvalidArgument)
	}
	c := p.cpu
	np, err := k.allocproc(c)
	if err != nil {
		return -1, err
	}
	pgdir, err := k.vm.Clone(p.pgdir, p.sz)
	if err != nil {
		k.unallocproc(c, np)
		return -1, fmt.Errorf("fork: %w", ErrResourceExhausted)
	}
	np.pgdir = pgdir
	k.remapStacks(p, np)

	tf := np.current().tf
	*tf = *p.current().tf
	// Clear EAX so that fork returns 0 in the child.
	tf.EAX = 0
	tf.EIP = k.text.linkOnce(child)

	for fd, f := range p.ofile {
		if f != nil {
			np.ofile[fd] = k.files.Dup(f)
		}
	}
	np.cwd = k.files.Idup(p.cwd)
	np.image = p.image
	pid := np.pid

	c.acquire(&k.ptable.lock)
	np.sz = p.sz
	np.stacksize = p.stacksize
	np.memlimit = p.memlimit
	np.parent = p.pid
	np.name = p.name
	np.state = Runnable
	np.current().state = TRunnable
	c.release(&k.ptable.lock)
	k.kick()
	k.publish(Lifecycle{Type: EventFork, PID: pid, Peer: p.pid, Name: p.name})
	return pid, nil
}

// remapStacks carries p's user-stack bookkeeping into np. The child's only
// thread takes over the caller's stack; every other stack p knows about,
// live or released, is available to the child for reuse. A parent's live
// stack is recorded once, as free, so no region is owned by two slots.
func (k *Kernel) remapStacks(p, np *Proc) {
	for i := 0; i < NTHRD; i++ {
		switch {
		case i == np.tidx:
			np.ustack[i] = p.ustack[p.tidx]
		case i == p.tidx:
			if p.ustack[np.tidx] != 0 {
				np.emptystack[i] = p.ustack[np.tidx]
			} else {
				np.emptystack[i] = p.emptystack[np.tidx]
			}
		default:
			if p.ustack[i] != 0 {
				np.emptystack[i] = p.ustack[i]
			} else {
				np.emptystack[i] = p.emptystack[i]
			}
		}
	}
}

// exit terminates the current process. It does not return: the process stays
// a zombie until its parent calls wait.
func (k *Kernel) exit(p *Proc) {
	if p == k.initproc {
		k.panic("init exiting")
	}
	for fd, f := range p.ofile {
		if f != nil {
			k.files.Close(f)
			p.ofile[fd] = nil
		}
	}
	if p.cwd != nil {
		k.files.Iput(p.cwd)
		p.cwd = nil
	}

	c := p.cpu
	c.acquire(&k.ptable.lock)
	// Parent might be sleeping in wait().
	if parent := k.lookup(p.parent); parent != nil {
		k.wakeup1(parent)
	}
	// Pass abandoned children to init.
	for i := range k.ptable.proc {
		q := &k.ptable.proc[i]
		if q.state != Unused && q.parent == p.pid {
			q.parent = k.initproc.pid
			if q.state == Zombie {
				k.wakeup1(k.initproc)
			}
		}
	}
	p.state = Zombie
	p.current().state = TZombie
	k.publish(Lifecycle{Type: EventExit, PID: p.pid, TID: p.current().tid, Name: p.name})
	k.sched(p)
	k.panic("zombie exit")
}

// lookup returns the live process with pid. ptable.lock must be held.
func (k *Kernel) lookup(pid int) *Proc {
	if pid <= 0 {
		return nil
	}
	for i := range k.ptable.proc {
		if p := &k.ptable.proc[i]; p.state != Unused && p.pid == pid {
			return p
		}
	}
	return nil
}

// wait waits for a child process to exit and returns its pid.
func (k *Kernel) wait(p *Proc) (int, error) {
	c := p.cpu
	c.acquire(&k.ptable.lock)
	for {
		havekids := false
		for i := range k.ptable.proc {
			q := &k.ptable.proc[i]
			if q.state == Unused || q.parent != p.pid {
				continue
			}
			havekids = true
			if q.state == Zombie {
				pid, name := q.pid, q.name
				k.freeproc(q)
				c.release(&k.ptable.lock)
				k.publish(Lifecycle{Type: EventReap, PID: pid, Peer: p.pid, Name: name})
				return pid, nil
			}
		}
		// No point waiting if we don't have any children.
		if !havekids || p.killed.Load() {
			c.release(&k.ptable.lock)
			return -1, ErrNoChildren
		}
		// Wait for children to exit (see wakeup1 in exit).
		k.sleep(p, p, &k.ptable.lock)
		c = p.cpu
	}
}

// freeproc reclaims a zombie. ptable.lock must be held.
func (k *Kernel) freeproc(p *Proc) {
	if p.pgdir != nil {
		k.vm.Free(p.pgdir)
		p.pgdir = nil
	}
	k.ret.clear(p.pid)
	for i := range p.threads {
		if p.threads[i].state != TUnused {
			if tf := p.threads[i].tf; tf != nil {
				k.text.unlinkOnce(tf.EIP)
			}
			k.freethread(p, i)
		}
		p.emptystack[i] = 0
		p.ustack[i] = 0
		p.waiting[i] = false
	}
	p.pid = 0
	p.parent = 0
	p.name = ""
	p.killed.Store(false)
	p.sz = 0
	p.memlimit = 0
	p.stacksize = 0
	p.image = nil
	p.cpu = nil
	p.tidx = 0
	p.state = Unused
}

// kill marks pid killed. The process won't exit until it reaches the trap
// boundary; sleeping threads are made runnable so they notice.
func (k *Kernel) kill(c *CPU, pid int) error {
	c.acquire(&k.ptable.lock)
	defer c.release(&k.ptable.lock)
	p := k.lookup(pid)
	if p == nil {
		return fmt.Errorf("kill %d: %w", pid, ErrNotFound)
	}
	p.killed.Store(true)
	for i := range p.threads {
		if t := &p.threads[i]; t.state == TSleeping {
			t.state = TRunnable
		}
	}
	k.kick()
	k.publish(Lifecycle{Type: EventKill, PID: pid, Name: p.name})
	return nil
}

// newUserSpace builds an address space holding a text page followed by a
// guard page and stackPages stack pages, with an empty argument frame at the
// stack top. It returns the space, its size and the initial stack pointer.
func (k *Kernel) newUserSpace(stackPages, limit int) (*vm.AddressSpace, uint32, uint32, error) {
	pgdir, err := k.vm.Setup()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("exec: %w", ErrResourceExhausted)
	}
	sz, err := k.vm.Grow(pgdir, 0, PGSIZE)
	if err != nil {
		k.vm.Free(pgdir)
		return nil, 0, 0, fmt.Errorf("exec: %w", ErrResourceExhausted)
	}
	need := uint32(stackPages+1) * PGSIZE
	if limit != 0 && int(sz+need) > limit {
		k.vm.Free(pgdir)
		k.cprintf("memory limit exceeded")
		return nil, 0, 0, fmt.Errorf("exec: %w", ErrLimitExceeded)
	}
	if sz, err = k.vm.Grow(pgdir, sz, sz+need); err != nil {
		k.vm.Free(pgdir)
		return nil, 0, 0, fmt.Errorf("exec: %w", ErrResourceExhausted)
	}
	k.vm.ClearUser(pgdir, sz-need)
	// fake return PC, argc, argv, argv[0] = 0
	sp := sz - 16
	if err = k.vm.CopyOut(pgdir, sp, fakeRet, 0, sp+12, 0); err != nil {
		k.vm.Free(pgdir)
		return nil, 0, 0, fmt.Errorf("exec: %w", err)
	}
	return pgdir, sz, sp, nil
}
