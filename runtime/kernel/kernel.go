package kernel

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/file"
	"github.com/viant/kproc/service/mem"
	"github.com/viant/kproc/service/vm"
)

// Kernel owns the process table, the CPUs and the collaborators they use.
type Kernel struct {
	config *Config

	ptable struct {
		lock spinlock
		proc [NPROC]Proc
	}
	initproc *Proc
	nextpid  int
	ret      retStore

	cpus      []*CPU
	cons      *CPU // host-side management context
	consoleMu sync.Mutex

	tickslock spinlock
	ticks     uint32

	mem     *mem.Service
	vm      vm.Service
	files   *file.Service
	text    *Text
	events  *event.Publisher[Lifecycle]
	console *log.Logger

	first    sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	halted   atomic.Bool
	ctxMu    sync.Mutex
	contexts map[*Context]struct{}
}

// New creates a kernel; call Start to boot it.
func New(options ...Option) *Kernel {
	k := &Kernel{
		nextpid:  1,
		contexts: map[*Context]struct{}{},
		text:     NewText(),
		ctx:      context.Background(),
	}
	k.ptable.lock.name = "ptable"
	k.tickslock.name = "time"
	for _, option := range options {
		option(k)
	}
	if k.config == nil {
		k.config = DefaultConfig()
	}
	if k.console == nil {
		k.console = log.New(os.Stdout, "", 0)
	}
	if k.mem == nil {
		k.mem = mem.New(k.config.Frames)
	}
	if k.vm == nil {
		k.vm = vm.New(k.mem)
	}
	if k.files == nil {
		k.files = file.New(file.DefaultBaseURL)
	}
	if k.config.IsolateReturnValues {
		k.ret = isolatedRet{}
	} else {
		k.ret = &sharedRet{}
	}
	k.cons = k.newCPU(-1)
	for i := 0; i < k.config.CPUs; i++ {
		k.cpus = append(k.cpus, k.newCPU(i))
	}
	return k
}

func (k *Kernel) newCPU(id int) *CPU {
	c := &CPU{id: id, k: k, kick: make(chan struct{}, 1), intr: true}
	c.scheduler = k.newContext(nil)
	c.scheduler.started = true
	return c
}

// Config returns the kernel configuration.
func (k *Kernel) Config() *Config { return k.config }

// Text returns the text registry routines are linked into.
func (k *Kernel) Text() *Text { return k.text }

// Files returns the file layer.
func (k *Kernel) Files() *file.Service { return k.files }

// Start links the default init program when missing, creates the first
// process and starts one scheduler per CPU.
func (k *Kernel) Start(ctx context.Context) error {
	if err := k.config.Validate(); err != nil {
		return err
	}
	if !k.started.CompareAndSwap(false, true) {
		return fmt.Errorf("kernel already started")
	}
	if _, err := k.files.ReadFile(ctx, k.config.InitPath); err != nil {
		if err := k.Link(ctx, k.config.InitPath, InitProgram()); err != nil {
			return fmt.Errorf("failed to link init: %w", err)
		}
	}
	k.ctx, k.cancel = context.WithCancel(ctx)
	k.consoleMu.Lock()
	k.userinit(k.cons)
	k.consoleMu.Unlock()
	now := clock.Now()
	for _, c := range k.cpus {
		c.next = now.Add(k.config.TickInterval)
		k.wg.Add(1)
		go k.scheduler(k.ctx, c)
	}
	return nil
}

// Shutdown stops the schedulers and discards every thread execution. Running
// threads are stopped at their next trap; the kernel cannot be restarted.
func (k *Kernel) Shutdown(ctx context.Context) error {
	if !k.started.Load() || !k.halted.CompareAndSwap(false, true) {
		return nil
	}
	k.cancel()
	k.kick()
	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("kernel shutdown: %w", ctx.Err())
	}
	k.ctxMu.Lock()
	for x := range k.contexts {
		x.kill()
		delete(k.contexts, x)
	}
	k.ctxMu.Unlock()
	return err
}

// Ticks returns the number of timer ticks since boot.
func (k *Kernel) Ticks() uint32 {
	k.consoleMu.Lock()
	defer k.consoleMu.Unlock()
	return k.uptime(k.cons)
}

// withConsole runs fn in the management context.
func (k *Kernel) withConsole(fn func(c *CPU)) {
	k.consoleMu.Lock()
	defer k.consoleMu.Unlock()
	fn(k.cons)
}

// Kill marks pid killed.
func (k *Kernel) Kill(pid int) (err error) {
	k.withConsole(func(c *CPU) { err = k.kill(c, pid) })
	return err
}

// SetMemoryLimit caps the address-space size of pid; 0 removes the cap.
func (k *Kernel) SetMemoryLimit(pid, limit int) (err error) {
	k.withConsole(func(c *CPU) { err = k.setMemoryLimit(c, pid, limit) })
	return err
}

// ProcList lists live processes in table order.
func (k *Kernel) ProcList() (ret []ProcInfo) {
	k.withConsole(func(c *CPU) { ret = k.procList(c) })
	return ret
}

// Spawn runs the executable at path in a new child of init.
func (k *Kernel) Spawn(ctx context.Context, path string, stackPages int) (pid int, err error) {
	k.withConsole(func(c *CPU) { pid, err = k.spawn(ctx, c, path, stackPages) })
	return pid, err
}

// kick wakes idle CPUs.
func (k *Kernel) kick() {
	for _, c := range k.cpus {
		c.nudge()
	}
}

// panic reports a fatal invariant violation on the console and aborts.
func (k *Kernel) panic(msg string) {
	k.console.Printf("kernel panic: %s", msg)
	panic(msg)
}

func (k *Kernel) cprintf(format string, args ...interface{}) {
	k.console.Printf(format, args...)
}
