package kernel

import (
	"sync/atomic"

	"github.com/viant/kproc/service/file"
	"github.com/viant/kproc/service/mem"
	"github.com/viant/kproc/service/vm"
)

// TrapFrame is the user register image saved on entry to the kernel.
type TrapFrame struct {
	EAX    uint32
	ESP    uint32
	EBP    uint32
	EIP    uint32
	CS     uint16
	DS     uint16
	ES     uint16
	SS     uint16
	EFlags uint32
}

// Thread is a slot of a process thread table.
type Thread struct {
	tid     int
	state   ThreadState
	kstack  *mem.Page  // bottom of kernel stack for this thread
	context *Context   // swtch here to run thread
	tf      *TrapFrame // trap frame for current syscall
	channel any        // if non-nil, sleeping on channel
}

// Proc is a process table entry.
type Proc struct {
	sz     uint32             // size of process memory (bytes)
	pgdir  *vm.AddressSpace   // page table
	state  ProcState          // process state
	pid    int                // process ID
	parent int                // parent process ID
	killed atomic.Bool        // if set, have been killed
	ofile  [NOFILE]*file.File // open files
	cwd    *file.Inode        // current directory
	name   string             // process name (debugging)
	cpu    *CPU               // cpu running the current thread
	image  *Image             // loaded executable

	threads    [NTHRD]Thread
	tidx       int           // index of the current thread
	ustack     [NTHRD]uint32 // top of each live thread's user stack
	emptystack [NTHRD]uint32 // released user stacks, reused by new threads
	waiting    [NTHRD]bool   // a joiner sleeps on the slot
	stacksize  int           // stack pages per thread
	memlimit   int           // 0 means unlimited
}

// current returns the running thread of p.
func (p *Proc) current() *Thread {
	return &p.threads[p.tidx]
}

// live counts slots that are neither unused nor terminated.
func (p *Proc) live() int {
	count := 0
	for i := range p.threads {
		if s := p.threads[i].state; s != TUnused && s != TZombie {
			count++
		}
	}
	return count
}
