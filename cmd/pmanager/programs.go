package main

import (
	"bytes"
	"context"
	"strings"

	"github.com/viant/kproc"
	"github.com/viant/kproc/runtime/kernel"
)

const numThread = 5

// programs are the sample images installed under /bin.
var programs = map[string]kernel.Program{
	"/bin/thread_manyt": threadManyt(),
	"/bin/thread_fork":  threadFork(),
	"/bin/memhog":       memhog(),
	"/bin/spin":         spin(),
}

func installPrograms(ctx context.Context, runtime *kproc.Runtime) error {
	for path, program := range programs {
		if err := runtime.Install(ctx, path, program); err != nil {
			return err
		}
	}
	return nil
}

// threadManyt creates 100 threads, joining older ones to keep the table from
// filling up.
func threadManyt() kernel.Program {
	return kernel.Program{
		Entry: "main",
		Symbols: map[string]kernel.Routine{
			"main": func(u *kernel.User, _ uint32) {
				u.Printf("Thread many create test start")
				u.Printf("100 thread will be created. '+' should be written 100 times")
				start := u.Symbol("thread_main")
				for i := 0; i < 100; i++ {
					_ = u.ThreadCreate(i+2, start, uint32(i))
					if i > 10 {
						_, _ = u.ThreadJoin(i - 9)
					}
				}
				_ = u.Sleep(100)
				printProcList(u)
				u.Exit()
			},
			"thread_main": func(u *kernel.User, _ uint32) {
				u.Printf("+")
				_ = u.Sleep(100)
				u.ThreadExit(1)
			},
		},
	}
}

// threadFork forks from inside every thread; each child spawns threads of
// its own before exiting.
func threadFork() kernel.Program {
	return kernel.Program{
		Entry: "main",
		Symbols: map[string]kernel.Routine{
			"main": func(u *kernel.User, _ uint32) {
				start := u.Symbol("thread_main")
				for i := 0; i < numThread; i++ {
					_ = u.ThreadCreate(i+2, start, uint32(i))
				}
				_ = u.Sleep(100)
				printProcList(u)
				_ = u.Sleep(500)
				u.Exit()
			},
			"thread_main": func(u *kernel.User, arg uint32) {
				_, err := u.Fork(func(u *kernel.User, _ uint32) {
					start := u.Symbol("thread_fork")
					for i := 0; i < numThread; i++ {
						_ = u.ThreadCreate(i+2, start, uint32(i))
					}
					_ = u.Sleep(300)
					u.Exit()
				})
				if err != nil {
					u.Printf("fork failed: %v", err)
				}
				_ = u.Sleep(200)
				u.ThreadExit(arg)
			},
			"thread_fork": func(u *kernel.User, arg uint32) {
				_ = u.Sleep(100)
				u.ThreadExit(arg)
			},
		},
	}
}

// memhog grows its heap a page at a time until the memory limit stops it.
func memhog() kernel.Program {
	return kernel.Program{
		Entry: "main",
		Symbols: map[string]kernel.Routine{
			"main": func(u *kernel.User, _ uint32) {
				for {
					if _, err := u.Sbrk(kernel.PGSIZE); err != nil {
						u.Printf("memhog: pid %d stopped: %v", u.Pid(), err)
						for {
							_ = u.Sleep(100)
						}
					}
					_ = u.Sleep(10)
				}
			},
		},
	}
}

// spin yields forever.
func spin() kernel.Program {
	return kernel.Program{
		Entry: "main",
		Symbols: map[string]kernel.Routine{
			"main": func(u *kernel.User, _ uint32) {
				for {
					u.Yield()
				}
			},
		},
	}
}

// printProcList writes the process listing to the console.
func printProcList(u *kernel.User) {
	buf := &bytes.Buffer{}
	kernel.PrintProcList(buf, u.ProcList())
	u.Printf("%s", strings.TrimSuffix(buf.String(), "\n"))
}
