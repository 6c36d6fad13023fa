package kernel

import (
	"context"
	"time"

	"github.com/viant/kproc/internal/clock"
)

// scheduler is the per-CPU process scheduler. It loops, doing:
//   - choose a process to run
//   - swtch to start running one of its threads
//   - eventually that thread transfers control back via swtch
func (k *Kernel) scheduler(ctx context.Context, c *CPU) {
	defer k.wg.Done()
	c.proc = nil
	for {
		if ctx.Err() != nil {
			return
		}
		c.sti()
		k.clockintr(c)

		ran := false
		c.acquire(&k.ptable.lock)
		for i := range k.ptable.proc {
			p := &k.ptable.proc[i]
			if p.state != Runnable {
				continue
			}
			// It is the thread's job to release ptable.lock and then
			// reacquire it before switching back.
			for j := 0; j < NTHRD && p.state == Runnable && ctx.Err() == nil; j++ {
				t := &p.threads[j]
				if t.state != TRunnable {
					continue
				}
				p.tidx = j
				p.cpu = c
				c.proc = p
				k.vm.Activate(c.id, p.pgdir)
				p.state = Running
				t.state = TRunning

				swtch(c.scheduler, t.context)
				k.vm.Activate(c.id, nil)
				ran = true
			}
			c.proc = nil
		}
		c.release(&k.ptable.lock)
		if !ran {
			k.idle(ctx, c)
		}
	}
}

// idle waits for runnable work, the next tick or shutdown.
func (k *Kernel) idle(ctx context.Context, c *CPU) {
	wait := clock.Until(c.next)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-c.kick:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// sched enters the scheduler. The caller must hold only ptable.lock and have
// changed the state of the process and its current thread. intena belongs to
// this kernel thread, not the cpu, so it is saved across the switch.
func (k *Kernel) sched(p *Proc) {
	c := p.cpu
	t := p.current()
	if !c.holding(&k.ptable.lock) {
		k.panic("sched ptable.lock")
	}
	if c.ncli != 1 {
		k.panic("sched locks")
	}
	if p.state == Running || t.state == TRunning {
		k.panic("sched running")
	}
	if c.intr {
		k.panic("sched interruptible")
	}
	intena := c.intena
	swtch(t.context, c.scheduler)
	p.cpu.intena = intena
}

// yield gives up the CPU for one scheduling round.
func (k *Kernel) yield(p *Proc) {
	p.cpu.acquire(&k.ptable.lock)
	p.state = Runnable
	p.current().state = TRunnable
	k.sched(p)
	p.cpu.release(&k.ptable.lock)
}

// forkret is where a new thread first runs, still holding ptable.lock from
// the scheduler. The very first call mounts the file system, which has to
// happen in a schedulable context.
func (k *Kernel) forkret(p *Proc) {
	p.cpu.release(&k.ptable.lock)
	k.first.Do(func() {
		if err := k.files.Init(k.ctx); err != nil {
			k.panic("forkret: mount: " + err.Error())
		}
	})
}

// clockintr delivers a due timer interrupt to c and reports whether one fired.
// Only cpu 0 advances the tick count.
func (k *Kernel) clockintr(c *CPU) bool {
	if !c.intr || !clock.Due(c.next) {
		return false
	}
	c.next = clock.Now().Add(k.config.TickInterval)
	if c.id == 0 {
		c.acquire(&k.tickslock)
		k.ticks++
		k.wakeup(c, &k.ticks)
		c.release(&k.tickslock)
	}
	return true
}
