package kernel

import (
	"fmt"

	"github.com/viant/kproc/service/vm"
)

// threadCreate starts a thread tid in p running the routine at start with arg.
func (k *Kernel) threadCreate(p *Proc, tid int, start, arg uint32) error {
	c := p.cpu
	c.acquire(&k.ptable.lock)
	idx, err := k.allocthread(p, tid)
	c.release(&k.ptable.lock)
	if err != nil {
		return err
	}
	nt := &p.threads[idx]

	// Prefer the released stack at the new slot, then any released stack.
	reused := -1
	if p.emptystack[idx] != 0 {
		reused = idx
	} else {
		for i := range p.emptystack {
			if p.emptystack[i] != 0 {
				reused = i
				break
			}
		}
	}
	if reused >= 0 {
		p.ustack[idx] = p.emptystack[reused]
		p.emptystack[reused] = 0
	} else if err = k.growStack(p, idx); err != nil {
		k.abortThread(p, idx, reused)
		return err
	}

	top := p.ustack[idx]
	// fake return PC, arg, frame pointer, arg
	sp := top - 16
	if err = k.vm.CopyOut(p.pgdir, sp, fakeRet, arg, top-8, arg); err != nil {
		k.abortThread(p, idx, reused)
		return fmt.Errorf("thread_create: %w", err)
	}
	*nt.tf = *p.current().tf
	nt.tf.EIP = start
	nt.tf.ESP = sp
	nt.tf.EAX = 0

	c.acquire(&k.ptable.lock)
	nt.state = TRunnable
	c.release(&k.ptable.lock)
	k.kick()
	k.publish(Lifecycle{Type: EventThreadCreate, PID: p.pid, TID: tid, Value: idx})
	return nil
}

// growStack maps a fresh stack region (a guard page plus stacksize pages) at
// the end of p's memory and records its top for slot idx.
func (k *Kernel) growStack(p *Proc, idx int) error {
	c := p.cpu
	c.acquire(&k.ptable.lock)
	sz, limit, pages := p.sz, p.memlimit, p.stacksize
	c.release(&k.ptable.lock)

	base := vm.PGROUNDUP(sz)
	need := uint32(pages+1) * PGSIZE
	if limit != 0 && int(base+need) > limit {
		k.cprintf("memory limit exceeded.")
		return fmt.Errorf("thread_create: %w", ErrLimitExceeded)
	}
	top, err := k.vm.Grow(p.pgdir, base, base+need)
	if err != nil {
		return fmt.Errorf("thread_create: %w", ErrResourceExhausted)
	}
	k.vm.ClearUser(p.pgdir, base)

	c.acquire(&k.ptable.lock)
	p.sz = top
	c.release(&k.ptable.lock)
	p.ustack[idx] = top
	return nil
}

// abortThread undoes a partially created thread, returning a reused stack
// to the free list.
func (k *Kernel) abortThread(p *Proc, idx, reused int) {
	c := p.cpu
	c.acquire(&k.ptable.lock)
	defer c.release(&k.ptable.lock)
	if reused >= 0 {
		p.emptystack[reused] = p.ustack[idx]
	}
	p.ustack[idx] = 0
	k.freethread(p, idx)
}

// threadExit terminates the current thread, saving retval for a joiner. The
// last live thread takes the whole process through exit. It does not return.
func (k *Kernel) threadExit(p *Proc, retval uint32) {
	c := p.cpu
	t := p.current()
	c.acquire(&k.ptable.lock)
	k.ret.store(p.pid, p.tidx, retval)
	if p.waiting[p.tidx] {
		k.wakeup1(p)
	}
	t.state = TZombie
	p.state = Runnable
	k.publish(Lifecycle{Type: EventThreadExit, PID: p.pid, TID: t.tid, Value: int(retval)})

	if p.live() == 0 {
		c.release(&k.ptable.lock)
		k.exit(p)
	}
	k.sched(p)
	k.panic("zombie exit")
}

// threadJoin waits for thread tid of p to exit, reclaims its slot and
// returns its exit value.
func (k *Kernel) threadJoin(p *Proc, tid int) (uint32, error) {
	if tid == p.current().tid {
		k.cprintf("You cannot join current thread.")
		return 0, fmt.Errorf("thread_join %d: self: %w", tid, ErrInvalidArgument)
	}
	c := p.cpu
	c.acquire(&k.ptable.lock)
	for {
		found := -1
		if tid > 0 {
			for i := range p.threads {
				if t := &p.threads[i]; t.state != TUnused && t.tid == tid {
					found = i
					break
				}
			}
		}
		if found >= 0 && p.threads[found].state == TZombie {
			k.freethread(p, found)
			p.emptystack[found] = p.ustack[found]
			p.ustack[found] = 0
			value := k.ret.load(p.pid, found)
			c.release(&k.ptable.lock)
			k.publish(Lifecycle{Type: EventThreadJoin, PID: p.pid, TID: tid, Value: int(value)})
			return value, nil
		}
		if found < 0 || p.killed.Load() {
			k.cprintf("tid doesn't exist.")
			c.release(&k.ptable.lock)
			return 0, fmt.Errorf("thread_join %d: %w", tid, ErrNotFound)
		}
		// Wait for the target to exit (see threadExit).
		p.waiting[found] = true
		k.sleep(p, p, &k.ptable.lock)
		c = p.cpu
		p.waiting[found] = false
	}
}
