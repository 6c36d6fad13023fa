// Package kproc provides a hosted process and kernel-thread manager modelled on
// a small teaching kernel.
//
// Processes own an address space, open files and up to sixteen kernel threads;
// a fixed set of CPUs schedules runnable threads round-robin. User code is
// ordinary Go linked into executable images stored in an afs file system, and
// reaches the kernel through the system call interface exposed by
// kernel.User.
//
//	srv := kproc.New()
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	_ = rt.Install(ctx, "/bin/hello", kernel.Program{Entry: "main", Symbols: ...})
//	pid, _ := rt.Execute(ctx, "/bin/hello", 1)
//	list, _ := rt.ProcList(ctx)
//
// Lifecycle transitions are published on the event service and can be observed
// with Service.OnEvent.
package kproc
