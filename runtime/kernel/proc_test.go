package kernel

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/service/file"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestKernel(t *testing.T, options ...Option) (*Kernel, *syncBuffer) {
	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	name := strings.NewReplacer("/", "-", " ", "_").Replace(t.Name())
	out := &syncBuffer{}
	base := []Option{
		WithConfig(cfg),
		WithConsole(out),
		WithFiles(file.New("mem://localhost/kproc-kernel/" + name)),
	}
	return New(append(base, options...)...), out
}

// newTestProc builds a running process owned by the console cpu, without a scheduler.
func newTestProc(t *testing.T, k *Kernel, stackPages int) *Proc {
	c := k.cons
	p, err := k.allocproc(c)
	require.NoError(t, err)
	pgdir, sz, sp, err := k.newUserSpace(stackPages, 0)
	require.NoError(t, err)
	p.pgdir = pgdir
	p.cpu = c
	p.cwd = k.files.Namei("/")
	tf := p.current().tf
	setUserSegments(tf)
	tf.ESP = sp
	p.ustack[p.tidx] = sz

	c.acquire(&k.ptable.lock)
	p.sz = sz
	p.stacksize = stackPages
	p.name = "test"
	p.state = Running
	p.current().state = TRunning
	c.release(&k.ptable.lock)
	return p
}

func slotOf(p *Proc, tid int) int {
	for i := range p.threads {
		if p.threads[i].state != TUnused && p.threads[i].tid == tid {
			return i
		}
	}
	return -1
}

func TestKernel_allocthread(t *testing.T) {
	k, out := newTestKernel(t)
	p := newTestProc(t, k, 1)
	c := k.cons

	c.acquire(&k.ptable.lock)
	_, err := k.allocthread(p, 0)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = k.allocthread(p, -3)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = k.allocthread(p, 1)
	assert.True(t, errors.Is(err, ErrDuplicateID))
	c.release(&k.ptable.lock)
	assert.Contains(t, out.String(), "duplicate")

	c.acquire(&k.ptable.lock)
	for tid := 2; tid <= NTHRD; tid++ {
		idx, err := k.allocthread(p, tid)
		require.NoError(t, err)
		assert.Equal(t, TEmbryo, p.threads[idx].state)
		assert.NotNil(t, p.threads[idx].kstack)
	}
	_, err = k.allocthread(p, NTHRD+1)
	assert.True(t, errors.Is(err, ErrResourceExhausted))
	k.freethread(p, 3)
	assert.Equal(t, TUnused, p.threads[3].state)
	idx, err := k.allocthread(p, 100)
	assert.NoError(t, err)
	assert.Equal(t, 3, idx)
	c.release(&k.ptable.lock)
}

func TestKernel_allocproc(t *testing.T) {
	k, _ := newTestKernel(t)
	var pids []int
	for i := 0; i < NPROC; i++ {
		p, err := k.allocproc(k.cons)
		require.NoError(t, err)
		assert.Equal(t, Embryo, p.state)
		assert.Equal(t, 1, p.current().tid)
		pids = append(pids, p.pid)
	}
	assert.Equal(t, 1, pids[0])
	assert.Equal(t, NPROC, pids[NPROC-1])
	_, err := k.allocproc(k.cons)
	assert.True(t, errors.Is(err, ErrResourceExhausted))

	p := &k.ptable.proc[10]
	k.unallocproc(k.cons, p)
	assert.Equal(t, Unused, p.state)
	np, err := k.allocproc(k.cons)
	require.NoError(t, err)
	assert.Equal(t, NPROC+1, np.pid)
}

func TestKernel_threadCreate(t *testing.T) {
	t.Run("grow then reuse", func(t *testing.T) {
		k, _ := newTestKernel(t)
		p := newTestProc(t, k, 1)
		sz := p.sz
		require.NoError(t, k.threadCreate(p, 2, 0x20, 7))
		idx := slotOf(p, 2)
		require.Equal(t, 1, idx)
		assert.Equal(t, TRunnable, p.threads[idx].state)
		assert.EqualValues(t, sz+2*PGSIZE, p.sz)
		top := p.ustack[idx]
		assert.Equal(t, p.sz, top)
		assert.EqualValues(t, 0x20, p.threads[idx].tf.EIP)
		assert.Equal(t, top-16, p.threads[idx].tf.ESP)
		arg, err := k.vm.CopyIn(p.pgdir, top-12)
		require.NoError(t, err)
		assert.EqualValues(t, 7, arg)
		ret, err := k.vm.CopyIn(p.pgdir, top-16)
		require.NoError(t, err)
		assert.EqualValues(t, fakeRet, ret)

		p.threads[idx].state = TZombie
		k.ret.store(p.pid, idx, 42)
		value, err := k.threadJoin(p, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 42, value)
		assert.Equal(t, TUnused, p.threads[idx].state)
		assert.Equal(t, top, p.emptystack[idx])
		assert.Zero(t, p.ustack[idx])

		grown := p.sz
		require.NoError(t, k.threadCreate(p, 3, 0x20, 9))
		assert.Equal(t, idx, slotOf(p, 3))
		assert.Equal(t, grown, p.sz)
		assert.Equal(t, top, p.ustack[idx])
		assert.Zero(t, p.emptystack[idx])
	})

	t.Run("duplicate tid", func(t *testing.T) {
		k, out := newTestKernel(t)
		p := newTestProc(t, k, 1)
		require.NoError(t, k.threadCreate(p, 2, 0x20, 0))
		err := k.threadCreate(p, 2, 0x20, 0)
		assert.True(t, errors.Is(err, ErrDuplicateID))
		assert.Contains(t, out.String(), "thread allocation error")
	})

	t.Run("thread table full", func(t *testing.T) {
		k, _ := newTestKernel(t)
		p := newTestProc(t, k, 1)
		for tid := 2; tid <= NTHRD; tid++ {
			require.NoError(t, k.threadCreate(p, tid, 0x20, 0))
		}
		err := k.threadCreate(p, NTHRD+1, 0x20, 0)
		assert.True(t, errors.Is(err, ErrResourceExhausted))
	})

	t.Run("memory limit", func(t *testing.T) {
		k, out := newTestKernel(t)
		p := newTestProc(t, k, 2)
		require.NoError(t, k.setMemoryLimit(k.cons, p.pid, int(p.sz)))
		sz := p.sz
		err := k.threadCreate(p, 2, 0x20, 0)
		assert.True(t, errors.Is(err, ErrLimitExceeded))
		assert.Contains(t, out.String(), "memory limit exceeded.")
		assert.Equal(t, -1, slotOf(p, 2))
		assert.Equal(t, sz, p.sz)

		require.NoError(t, k.setMemoryLimit(k.cons, p.pid, int(sz)+3*PGSIZE))
		require.NoError(t, k.threadCreate(p, 2, 0x20, 0))
		assert.EqualValues(t, sz+3*PGSIZE, p.sz)
	})
}

func TestKernel_threadJoin(t *testing.T) {
	k, out := newTestKernel(t)
	p := newTestProc(t, k, 1)

	_, err := k.threadJoin(p, 1)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Contains(t, out.String(), "You cannot join current thread.")

	_, err = k.threadJoin(p, 0)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = k.threadJoin(p, 5)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, out.String(), "tid doesn't exist.")
}

func TestKernel_remapStacks(t *testing.T) {
	k, _ := newTestKernel(t)
	p, np := &Proc{}, &Proc{}
	p.tidx = 2
	p.ustack[2] = 0xA000
	p.ustack[0] = 0xB000
	p.emptystack[5] = 0xC000
	p.ustack[7] = 0xD000
	np.tidx = 0

	k.remapStacks(p, np)
	assert.EqualValues(t, 0xA000, np.ustack[0])
	assert.EqualValues(t, 0xB000, np.emptystack[2])
	assert.EqualValues(t, 0xC000, np.emptystack[5])
	assert.EqualValues(t, 0xD000, np.emptystack[7])
	assert.Zero(t, np.emptystack[0])
	assert.Zero(t, np.emptystack[1])
	for i := 1; i < NTHRD; i++ {
		assert.Zero(t, np.ustack[i])
	}

	// current thread at slot 0 with another live stack at slot 2
	p, np = &Proc{}, &Proc{}
	p.ustack[0] = 0x3000
	p.ustack[2] = 0x5000
	p.emptystack[4] = 0x7000
	k.remapStacks(p, np)
	assert.EqualValues(t, 0x3000, np.ustack[0])
	assert.Zero(t, np.ustack[2])
	assert.EqualValues(t, 0x5000, np.emptystack[2])
	assert.EqualValues(t, 0x7000, np.emptystack[4])
	assert.Zero(t, np.emptystack[0])
}

func TestKernel_fork(t *testing.T) {
	k, _ := newTestKernel(t)
	p := newTestProc(t, k, 1)
	p.memlimit = 1 << 20

	_, err := k.fork(p, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	pid, err := k.fork(p, func(u *User, arg uint32) {})
	require.NoError(t, err)
	assert.Equal(t, 1, k.Text().Pending())

	c := k.cons
	c.acquire(&k.ptable.lock)
	np := k.lookup(pid)
	require.NotNil(t, np)
	assert.Equal(t, Runnable, np.state)
	assert.Equal(t, p.pid, np.parent)
	assert.Equal(t, p.sz, np.sz)
	assert.Equal(t, p.memlimit, np.memlimit)
	assert.Equal(t, p.stacksize, np.stacksize)
	assert.Equal(t, "test", np.name)
	assert.Equal(t, p.ustack[p.tidx], np.ustack[np.tidx])
	assert.Zero(t, np.current().tf.EAX)
	assert.Equal(t, p.current().tf.ESP, np.current().tf.ESP)
	assert.Equal(t, 2, k.files.Refs("/"))

	k.freeproc(np)
	assert.Equal(t, Unused, np.state)
	assert.Zero(t, np.sz)
	assert.Zero(t, np.memlimit)
	assert.Zero(t, np.stacksize)
	c.release(&k.ptable.lock)
	assert.Equal(t, 0, k.Text().Pending())
}

func TestKernel_wait(t *testing.T) {
	k, _ := newTestKernel(t)
	p := newTestProc(t, k, 1)
	_, err := k.wait(p)
	assert.True(t, errors.Is(err, ErrNoChildren))

	child := newTestProc(t, k, 1)
	childPID := child.pid
	child.parent = p.pid
	child.state = Zombie
	child.current().state = TZombie
	pid, err := k.wait(p)
	require.NoError(t, err)
	assert.Equal(t, childPID, pid)
	assert.Zero(t, child.pid)
	assert.Equal(t, Unused, child.state)
}

func TestKernel_kill(t *testing.T) {
	k, _ := newTestKernel(t)
	p := newTestProc(t, k, 1)
	p.state = Runnable
	p.current().state = TSleeping
	p.current().channel = p

	assert.True(t, errors.Is(k.kill(k.cons, 0), ErrNotFound))
	assert.True(t, errors.Is(k.kill(k.cons, 999), ErrNotFound))
	require.NoError(t, k.kill(k.cons, p.pid))
	assert.True(t, p.killed.Load())
	assert.Equal(t, TRunnable, p.current().state)
}

func TestKernel_wakeup(t *testing.T) {
	k, _ := newTestKernel(t)
	p1 := newTestProc(t, k, 1)
	p2 := newTestProc(t, k, 1)
	x, y := new(int), new(int)
	for _, p := range []*Proc{p1, p2} {
		p.state = Runnable
		p.current().state = TSleeping
	}
	p1.current().channel = x
	p2.current().channel = y
	require.NoError(t, k.threadCreate(p1, 2, 0x20, 0))
	t2 := &p1.threads[slotOf(p1, 2)]
	t2.state = TSleeping
	t2.channel = x

	require.NoError(t, k.threadCreate(p1, 3, 0x20, 0))
	ready := &p1.threads[slotOf(p1, 3)]
	ready.state = TRunnable
	ready.channel = x
	require.NoError(t, k.threadCreate(p2, 4, 0x20, 0))
	embryo := &p2.threads[slotOf(p2, 4)]
	embryo.state = TEmbryo
	embryo.channel = x
	require.NoError(t, k.threadCreate(p2, 5, 0x20, 0))
	zombie := &p2.threads[slotOf(p2, 5)]
	zombie.state = TZombie
	zombie.channel = x

	assert.Equal(t, 2, k.wakeup(k.cons, x))
	assert.Equal(t, TRunnable, p1.current().state)
	assert.Equal(t, TRunnable, t2.state)
	assert.Equal(t, TSleeping, p2.current().state)
	assert.Equal(t, TRunnable, ready.state)
	assert.Equal(t, TEmbryo, embryo.state)
	assert.Equal(t, TZombie, zombie.state)

	// already runnable threads are not woken twice
	assert.Equal(t, 0, k.wakeup(k.cons, x))
	assert.Equal(t, TRunnable, t2.state)
	assert.Equal(t, TSleeping, p2.current().state)
}

func TestKernel_setMemoryLimit(t *testing.T) {
	k, out := newTestKernel(t)
	p := newTestProc(t, k, 1)
	c := k.cons

	var testCases = []struct {
		description string
		pid         int
		limit       int
		expect      error
		expectLimit int
	}{
		{description: "missing pid", pid: 999, limit: 0, expect: ErrNotFound},
		{description: "negative", pid: p.pid, limit: -1, expect: ErrInvalidArgument},
		{description: "below size", pid: p.pid, limit: int(p.sz) - 1, expect: ErrInvalidArgument},
		{description: "exact size", pid: p.pid, limit: int(p.sz), expectLimit: int(p.sz)},
		{description: "unlimited", pid: p.pid, limit: 0, expectLimit: 0},
	}
	for _, testCase := range testCases {
		err := k.setMemoryLimit(c, testCase.pid, testCase.limit)
		if testCase.expect != nil {
			assert.True(t, errors.Is(err, testCase.expect), testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expectLimit, p.memlimit, testCase.description)
	}
	assert.Contains(t, out.String(), "memory limit must be positive")
	assert.Contains(t, out.String(), "memory limit can't be smaller than allocated size")
}

func TestKernel_growproc(t *testing.T) {
	k, out := newTestKernel(t)
	p := newTestProc(t, k, 1)
	sz := p.sz
	require.NoError(t, k.growproc(p, PGSIZE))
	assert.Equal(t, sz+PGSIZE, p.sz)
	require.NoError(t, k.growproc(p, -PGSIZE))
	assert.Equal(t, sz, p.sz)
	assert.True(t, errors.Is(k.growproc(p, -int(sz)-1), ErrInvalidArgument))

	require.NoError(t, k.setMemoryLimit(k.cons, p.pid, int(sz)+10))
	assert.NoError(t, k.growproc(p, 10))
	assert.True(t, errors.Is(k.growproc(p, 1), ErrLimitExceeded))
	assert.Contains(t, out.String(), "memory limit exceeded")
}

func TestKernel_sched(t *testing.T) {
	var testCases = []struct {
		description string
		setup       func(k *Kernel, p *Proc)
		expect      string
	}{
		{
			description: "table lock not held",
			setup:       func(k *Kernel, p *Proc) {},
			expect:      "sched ptable.lock",
		},
		{
			description: "extra lock held",
			setup: func(k *Kernel, p *Proc) {
				k.cons.acquire(&k.ptable.lock)
				k.cons.acquire(&k.tickslock)
			},
			expect: "sched locks",
		},
		{
			description: "still running",
			setup: func(k *Kernel, p *Proc) {
				k.cons.acquire(&k.ptable.lock)
			},
			expect: "sched running",
		},
		{
			description: "interruptible",
			setup: func(k *Kernel, p *Proc) {
				k.cons.acquire(&k.ptable.lock)
				p.state = Runnable
				p.current().state = TRunnable
				k.cons.intr = true
			},
			expect: "sched interruptible",
		},
	}
	for _, testCase := range testCases {
		k, out := newTestKernel(t)
		p := newTestProc(t, k, 1)
		testCase.setup(k, p)
		assert.PanicsWithValue(t, testCase.expect, func() { k.sched(p) }, testCase.description)
		assert.Contains(t, out.String(), "kernel panic: "+testCase.expect, testCase.description)
	}
}

func TestKernel_spinlock(t *testing.T) {
	k, _ := newTestKernel(t)
	c := k.cons
	assert.False(t, c.holding(&k.ptable.lock))
	c.acquire(&k.ptable.lock)
	assert.True(t, c.holding(&k.ptable.lock))
	assert.False(t, c.intr)
	assert.Equal(t, 1, c.ncli)
	assert.PanicsWithValue(t, "acquire ptable", func() { c.acquire(&k.ptable.lock) })

	k, _ = newTestKernel(t)
	c = k.cons
	c.acquire(&k.ptable.lock)
	c.acquire(&k.tickslock)
	c.release(&k.tickslock)
	assert.False(t, c.intr)
	c.release(&k.ptable.lock)
	assert.True(t, c.intr)
	assert.Equal(t, 0, c.ncli)
	assert.PanicsWithValue(t, "release time", func() { c.release(&k.tickslock) })

	k, _ = newTestKernel(t)
	k.cons.intr = true
	assert.PanicsWithValue(t, "popcli - interruptible", func() { k.cons.popcli() })
}

func TestKernel_userinit(t *testing.T) {
	k, _ := newTestKernel(t)
	k.userinit(k.cons)
	p := k.initproc
	require.NotNil(t, p)
	tf := p.current().tf
	assert.EqualValues(t, PGSIZE-8, tf.ESP)
	assert.Less(t, tf.ESP+4, p.sz)
	ret, err := k.vm.CopyIn(p.pgdir, tf.ESP)
	require.NoError(t, err)
	assert.EqualValues(t, uint32(fakeRet), ret)
	arg, err := k.vm.CopyIn(p.pgdir, tf.ESP+4)
	require.NoError(t, err)
	assert.EqualValues(t, 0, arg)
	assert.Equal(t, Runnable, p.state)
	assert.Equal(t, "initcode", p.name)
}

func TestKernel_exitInit(t *testing.T) {
	k, out := newTestKernel(t)
	k.userinit(k.cons)
	assert.PanicsWithValue(t, "userinit: init exists", func() { k.userinit(k.cons) })
	p := k.initproc
	p.cpu = k.cons
	assert.PanicsWithValue(t, "init exiting", func() { k.exit(p) })
	assert.Contains(t, out.String(), "kernel panic: init exiting")
}

func TestKernel_procList(t *testing.T) {
	k, _ := newTestKernel(t)
	running := newTestProc(t, k, 3)
	running.name = "a-rather-long-name"
	zombie := newTestProc(t, k, 1)
	zombie.state = Zombie
	_, err := k.allocproc(k.cons)
	require.NoError(t, err)
	runnable := newTestProc(t, k, 1)
	runnable.state = Runnable
	runnable.memlimit = 1 << 20

	list := k.ProcList()
	require.Len(t, list, 2)
	assert.Equal(t, ProcInfo{Name: "a-rather-long-name", PID: running.pid, StackPages: 3, Size: running.sz}, list[0])
	assert.Equal(t, runnable.pid, list[1].PID)
	assert.Equal(t, 1<<20, list[1].Limit)

	out := &bytes.Buffer{}
	PrintProcList(out, list)
	assert.True(t, strings.HasPrefix(out.String(), "Process Name\t pid\tnumofstackpage\tmemsize\t memmax\n"))
	assert.Contains(t, out.String(), "a-rather-long-name ")
	assert.Contains(t, out.String(), "test\t\t ")

	dump := &bytes.Buffer{}
	k.Dump(dump)
	assert.Contains(t, dump.String(), "zombie")
	assert.Contains(t, dump.String(), "embryo")
	assert.Contains(t, dump.String(), "tid 1 run")
}

func TestRetStore(t *testing.T) {
	shared := &sharedRet{}
	shared.store(1, 3, 7)
	assert.EqualValues(t, 7, shared.load(2, 3))
	shared.clear(1)
	assert.EqualValues(t, 7, shared.load(1, 3))

	isolated := isolatedRet{}
	isolated.store(1, 3, 7)
	assert.EqualValues(t, 7, isolated.load(1, 3))
	assert.EqualValues(t, 0, isolated.load(2, 3))
	isolated.clear(1)
	assert.EqualValues(t, 0, isolated.load(1, 3))

	k, _ := newTestKernel(t, WithConfig(&Config{CPUs: 1, Frames: 64, TickInterval: time.Millisecond, StackPages: 1, MaxStackPages: 4, IsolateReturnValues: true, InitPath: "/init"}))
	_, ok := k.ret.(isolatedRet)
	assert.True(t, ok)
}

func TestText(t *testing.T) {
	text := NewText()
	a := text.Link("a", func(u *User, arg uint32) {})
	b := text.Link("b", func(u *User, arg uint32) {})
	assert.EqualValues(t, textBase, a)
	assert.EqualValues(t, textBase+textStep, b)
	assert.Equal(t, a, text.Link("a", func(u *User, arg uint32) {}))
	addr, ok := text.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, b, addr)
	_, ok = text.Lookup("c")
	assert.False(t, ok)

	once := text.linkOnce(func(u *User, arg uint32) {})
	assert.Equal(t, 1, text.Pending())
	sym, ok := text.resolve(once)
	require.True(t, ok)
	assert.True(t, sym.cont)
	assert.Equal(t, 0, text.Pending())
	_, ok = text.resolve(once)
	assert.False(t, ok)

	sym, ok = text.resolve(a)
	require.True(t, ok)
	assert.Equal(t, "a", sym.name)
	_, ok = text.resolve(a)
	assert.True(t, ok)

	once = text.linkOnce(func(u *User, arg uint32) {})
	text.unlinkOnce(once)
	text.unlinkOnce(a)
	assert.Equal(t, 0, text.Pending())
	_, ok = text.resolve(a)
	assert.True(t, ok)
}

func TestConfig_Validate(t *testing.T) {
	var testCases = []struct {
		description string
		mutate      func(c *Config)
		expectErr   bool
	}{
		{description: "defaults", mutate: func(c *Config) {}},
		{description: "too many cpus", mutate: func(c *Config) { c.CPUs = NCPU + 1 }, expectErr: true},
		{description: "no frames", mutate: func(c *Config) { c.Frames = 0 }, expectErr: true},
		{description: "no tick", mutate: func(c *Config) { c.TickInterval = 0 }, expectErr: true},
		{description: "no stack", mutate: func(c *Config) { c.StackPages = 0 }, expectErr: true},
		{description: "no init", mutate: func(c *Config) { c.InitPath = "" }, expectErr: true},
	}
	for _, testCase := range testCases {
		cfg := DefaultConfig()
		testCase.mutate(cfg)
		if testCase.expectErr {
			assert.Error(t, cfg.Validate(), testCase.description)
			continue
		}
		assert.NoError(t, cfg.Validate(), testCase.description)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "runble", Runnable.String())
	assert.Equal(t, "zombie", Zombie.String())
	assert.Equal(t, "???", ProcState(42).String())
	assert.Equal(t, "sleep", TSleeping.String())
	assert.Equal(t, "run", TRunning.String())
	assert.Equal(t, "???", ThreadState(-1).String())
}
