// Package kernel implements the process and kernel-thread management core of a
// hosted xv6-style kernel.
//
// The process table is a fixed arena of NPROC processes, each embedding NTHRD
// thread slots, guarded by a single table lock. Every simulated CPU runs a
// scheduler goroutine that scans the table in order and hands execution to the
// first runnable thread. Threads are goroutines that only run while their CPU's
// scheduler is parked, so exactly one of the two executes at a time and the table
// lock travels with the handoff the same way it does across a context switch.
//
// User code is ordinary Go: a Routine linked at a text address and invoked with
// a *User whose methods are the system calls. Each call passes through the trap
// boundary, which honours the killed flag and delivers timer interrupts.
package kernel
