package kernel

// sleep atomically releases lk and sleeps on chan, reacquiring lk when woken.
// Once ptable.lock is held no wakeup can be missed, since wakeup runs with
// ptable.lock held, so lk can be dropped.
func (k *Kernel) sleep(p *Proc, channel any, lk *spinlock) {
	if p == nil {
		k.panic("sleep")
	}
	if lk == nil {
		k.panic("sleep without lk")
	}
	c := p.cpu
	if lk != &k.ptable.lock {
		c.acquire(&k.ptable.lock)
		c.release(lk)
	}
	t := p.current()
	t.channel = channel
	p.state = Runnable
	t.state = TSleeping
	k.sched(p)

	t.channel = nil
	if lk != &k.ptable.lock {
		c = p.cpu
		c.release(&k.ptable.lock)
		c.acquire(lk)
	}
}

// wakeup1 wakes every thread sleeping on channel and returns how many it
// woke. ptable.lock must be held.
func (k *Kernel) wakeup1(channel any) int {
	woken := 0
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		for j := range p.threads {
			if t := &p.threads[j]; t.state == TSleeping && t.channel == channel {
				t.state = TRunnable
				woken++
			}
		}
	}
	if woken > 0 {
		k.kick()
	}
	return woken
}

// wakeup wakes every thread sleeping on channel.
func (k *Kernel) wakeup(c *CPU, channel any) int {
	c.acquire(&k.ptable.lock)
	defer c.release(&k.ptable.lock)
	return k.wakeup1(channel)
}
