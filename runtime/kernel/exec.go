package kernel

import (
	"context"
	"fmt"
	"path"
	"runtime"
)

func (k *Kernel) checkStackPages(stackPages int) error {
	if stackPages < 1 || stackPages > k.config.MaxStackPages {
		return fmt.Errorf("stack pages %d not in [1,%d]: %w", stackPages, k.config.MaxStackPages, ErrInvalidArgument)
	}
	return nil
}

// exec replaces the image of p with the program at filename. Every other
// thread is reclaimed and the calling thread restarts at the new entry. It
// returns only on failure, leaving p unchanged.
func (k *Kernel) exec(p *Proc, filename string, stackPages int) error {
	if err := k.checkStackPages(stackPages); err != nil {
		return err
	}
	image, err := k.loadImage(k.ctx, filename)
	if err != nil {
		return err
	}
	c := p.cpu
	c.acquire(&k.ptable.lock)
	limit := p.memlimit
	c.release(&k.ptable.lock)
	pgdir, sz, sp, err := k.newUserSpace(stackPages, limit)
	if err != nil {
		return err
	}

	c.acquire(&k.ptable.lock)
	for i := range p.threads {
		if i != p.tidx && p.threads[i].state != TUnused {
			k.freethread(p, i)
		}
		p.ustack[i] = 0
		p.emptystack[i] = 0
		p.waiting[i] = false
	}
	p.ustack[p.tidx] = sz
	old := p.pgdir
	p.pgdir = pgdir
	p.sz = sz
	p.stacksize = stackPages
	p.name = path.Base(filename)
	p.image = image

	t := p.current()
	t.tf.EIP = image.Entry
	t.tf.ESP = sp
	t.tf.EAX = 0
	prev := t.context
	next := k.newContext(nil)
	next.started = true
	t.context = next
	c.release(&k.ptable.lock)

	k.vm.Activate(c.id, pgdir)
	k.vm.Free(old)
	k.publish(Lifecycle{Type: EventExec, PID: p.pid, TID: t.tid, Name: p.name, Value: stackPages})

	// The new image runs on a fresh execution once this one has unwound.
	k.dropContext(prev)
	go next.run(prev.exited, func() { k.usermode(p) })
	runtime.Goexit()
	return nil
}

// spawn creates a child of init running the program at filename.
func (k *Kernel) spawn(ctx context.Context, c *CPU, filename string, stackPages int) (int, error) {
	if err := k.checkStackPages(stackPages); err != nil {
		return -1, err
	}
	if k.initproc == nil {
		return -1, fmt.Errorf("execute %s: kernel not started", filename)
	}
	image, err := k.loadImage(ctx, filename)
	if err != nil {
		return -1, err
	}
	np, err := k.allocproc(c)
	if err != nil {
		return -1, err
	}
	pgdir, sz, sp, err := k.newUserSpace(stackPages, 0)
	if err != nil {
		k.unallocproc(c, np)
		return -1, err
	}
	np.pgdir = pgdir
	tf := np.current().tf
	*tf = TrapFrame{}
	setUserSegments(tf)
	tf.EIP = image.Entry
	tf.ESP = sp
	np.ustack[np.tidx] = sz
	np.cwd = k.files.Namei("/")
	np.image = image
	pid := np.pid

	c.acquire(&k.ptable.lock)
	np.sz = sz
	np.stacksize = stackPages
	np.name = path.Base(filename)
	np.parent = k.initproc.pid
	np.state = Runnable
	np.current().state = TRunnable
	c.release(&k.ptable.lock)
	k.kick()
	k.publish(Lifecycle{Type: EventExec, PID: pid, TID: 1, Name: path.Base(filename), Value: stackPages})
	return pid, nil
}
