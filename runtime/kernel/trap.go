package kernel

// trapret returns to user mode on the current thread of p.
func (k *Kernel) trapret(p *Proc) {
	k.usermode(p)
}

// usermode runs the routine at the current thread's EIP. Entry points find
// their argument above the fake return PC; continuations take EAX.
func (k *Kernel) usermode(p *Proc) {
	k.enter(p)
	tf := p.current().tf
	sym, ok := k.text.resolve(tf.EIP)
	if !ok {
		k.fault(p, tf.EIP, tf.EIP)
	}
	arg := tf.EAX
	if !sym.cont {
		value, err := k.vm.CopyIn(p.pgdir, tf.ESP+4)
		if err != nil {
			k.fault(p, tf.EIP, tf.ESP+4)
		}
		arg = value
	}
	sym.fn(&User{k: k, p: p}, arg)
	// The routine returned to the fake return PC.
	k.fault(p, fakeRet, fakeRet)
}

// fault kills p for a user page fault. It does not return.
func (k *Kernel) fault(p *Proc, eip, addr uint32) {
	k.cprintf("pid %d %s: trap %d err %d on cpu %d eip 0x%x addr 0x%x--kill proc",
		p.pid, p.name, trapPageFault, 4, p.cpu.id, eip, addr)
	p.killed.Store(true)
	k.exit(p)
}

// trap runs a system call for the current thread of p and stores its result
// in EAX, or -1 on error.
func (k *Kernel) trap(p *Proc, call func() (uint32, error)) (uint32, error) {
	k.enter(p)
	value, err := call()
	if err != nil {
		p.current().tf.EAX = 0xffffffff
	} else {
		p.current().tf.EAX = value
	}
	k.leave(p)
	return value, err
}

func (k *Kernel) enter(p *Proc) {
	if k.halted.Load() {
		k.yield(p)
	}
	if p.killed.Load() {
		k.exit(p)
	}
}

// leave is the return path to user mode: a killed process exits, and a timer
// tick forces the thread to give up the CPU.
func (k *Kernel) leave(p *Proc) {
	if p.killed.Load() {
		k.exit(p)
	}
	if k.clockintr(p.cpu) || k.halted.Load() {
		k.yield(p)
	}
	if p.killed.Load() {
		k.exit(p)
	}
}

// sleepTicks sleeps for n clock ticks.
func (k *Kernel) sleepTicks(p *Proc, n int) error {
	p.cpu.acquire(&k.tickslock)
	ticks0 := k.ticks
	for int(k.ticks-ticks0) < n {
		if p.killed.Load() {
			p.cpu.release(&k.tickslock)
			return ErrKilled
		}
		k.sleep(p, &k.ticks, &k.tickslock)
	}
	p.cpu.release(&k.tickslock)
	return nil
}

func (k *Kernel) uptime(c *CPU) uint32 {
	c.acquire(&k.tickslock)
	defer c.release(&k.tickslock)
	return k.ticks
}
