package kernel

import (
	"runtime"
	"sync"
)

// Context is a saved execution point. A thread's context is backed by a
// goroutine started on first resumption; a parked goroutine continues when
// its context is resumed and terminates when the context is killed.
type Context struct {
	eip     func()
	started bool
	wake    chan struct{}
	dead    chan struct{}
	exited  chan struct{}
	once    sync.Once
}

func (k *Kernel) newContext(eip func()) *Context {
	x := &Context{
		eip:    eip,
		wake:   make(chan struct{}, 1),
		dead:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	k.ctxMu.Lock()
	k.contexts[x] = struct{}{}
	k.ctxMu.Unlock()
	return x
}

// dropContext kills x and forgets it.
func (k *Kernel) dropContext(x *Context) {
	if x == nil {
		return
	}
	x.kill()
	k.ctxMu.Lock()
	delete(k.contexts, x)
	k.ctxMu.Unlock()
}

// swtch saves the current execution in old and continues new.
func swtch(old, new *Context) {
	new.resume()
	old.park()
}

func (x *Context) resume() {
	if !x.started {
		x.started = true
		go x.run(nil, x.eip)
		return
	}
	select {
	case x.wake <- struct{}{}:
	default:
	}
}

// run executes entry on the calling goroutine once after has closed.
func (x *Context) run(after <-chan struct{}, entry func()) {
	defer close(x.exited)
	if after != nil {
		<-after
	}
	entry()
}

func (x *Context) park() {
	select {
	case <-x.wake:
	case <-x.dead:
		runtime.Goexit()
	}
	select {
	case <-x.dead:
		runtime.Goexit()
	default:
	}
}

func (x *Context) kill() {
	x.once.Do(func() { close(x.dead) })
}
