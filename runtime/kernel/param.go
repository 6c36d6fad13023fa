package kernel

import "github.com/viant/kproc/service/mem"

const (
	NPROC      = 64 // maximum number of processes
	NTHRD      = 16 // maximum number of threads per process
	NOFILE     = 16 // open files per process
	NCPU       = 8  // maximum number of CPUs
	PGSIZE     = mem.PGSIZE
	KSTACKSIZE = PGSIZE // size of per-thread kernel stack
)

// Segment selectors and flags loaded into user trap frames.
const (
	segUCode = 3
	segUData = 4
	dplUser  = 3
	flagIF   = 0x00000200
)

// trapPageFault is the page fault trap number.
const trapPageFault = 14

// fakeRet is the return address pushed below every user entry frame.
const fakeRet = 0xffffffff
