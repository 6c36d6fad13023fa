package kernel

import "fmt"

// User is the system call interface seen by a routine running in user mode.
// Methods that do not return (Exit, ThreadExit, a successful Exec) end the
// calling routine.
type User struct {
	k *Kernel
	p *Proc
}

// Pid returns the calling process id.
func (u *User) Pid() int { return u.p.pid }

// Tid returns the calling thread id.
func (u *User) Tid() int { return u.p.current().tid }

// Symbol returns the address of name in the running image, 0 if absent.
func (u *User) Symbol(name string) uint32 { return u.p.image.Symbol(name) }

// Fork creates a child process; the child continues in child with arg 0.
func (u *User) Fork(child Routine) (int, error) {
	pid, err := u.k.trap(u.p, func() (uint32, error) {
		pid, err := u.k.fork(u.p, child)
		return uint32(pid), err
	})
	return int(int32(pid)), err
}

// Exit terminates the calling process.
func (u *User) Exit() {
	_, _ = u.k.trap(u.p, func() (uint32, error) {
		u.k.exit(u.p)
		return 0, nil
	})
}

// Wait reaps a terminated child and returns its pid.
func (u *User) Wait() (int, error) {
	pid, err := u.k.trap(u.p, func() (uint32, error) {
		pid, err := u.k.wait(u.p)
		return uint32(pid), err
	})
	return int(int32(pid)), err
}

// Kill marks pid killed.
func (u *User) Kill(pid int) error {
	_, err := u.k.trap(u.p, func() (uint32, error) {
		return 0, u.k.kill(u.p.cpu, pid)
	})
	return err
}

// Yield gives up the CPU.
func (u *User) Yield() {
	_, _ = u.k.trap(u.p, func() (uint32, error) {
		u.k.yield(u.p)
		return 0, nil
	})
}

// Sleep waits for n clock ticks.
func (u *User) Sleep(n int) error {
	_, err := u.k.trap(u.p, func() (uint32, error) {
		return 0, u.k.sleepTicks(u.p, n)
	})
	return err
}

// Uptime returns the number of clock ticks since boot.
func (u *User) Uptime() uint32 {
	ticks, _ := u.k.trap(u.p, func() (uint32, error) {
		return u.k.uptime(u.p.cpu), nil
	})
	return ticks
}

// Sbrk grows memory by n bytes and returns the previous size.
func (u *User) Sbrk(n int) (uint32, error) {
	return u.k.trap(u.p, func() (uint32, error) {
		addr := u.p.sz
		if err := u.k.growproc(u.p, n); err != nil {
			return 0, err
		}
		return addr, nil
	})
}

// Exec replaces the process image; it returns only on failure.
func (u *User) Exec(path string, stackPages int) error {
	_, err := u.k.trap(u.p, func() (uint32, error) {
		return 0, u.k.exec(u.p, path, stackPages)
	})
	return err
}

// SetMemoryLimit caps the memory of pid; 0 removes the cap.
func (u *User) SetMemoryLimit(pid, limit int) error {
	_, err := u.k.trap(u.p, func() (uint32, error) {
		return 0, u.k.setMemoryLimit(u.p.cpu, pid, limit)
	})
	return err
}

// ProcList lists live processes.
func (u *User) ProcList() []ProcInfo {
	var ret []ProcInfo
	_, _ = u.k.trap(u.p, func() (uint32, error) {
		ret = u.k.procList(u.p.cpu)
		return 0, nil
	})
	return ret
}

// ThreadCreate starts thread tid at the routine linked at start.
func (u *User) ThreadCreate(tid int, start, arg uint32) error {
	_, err := u.k.trap(u.p, func() (uint32, error) {
		return 0, u.k.threadCreate(u.p, tid, start, arg)
	})
	return err
}

// ThreadExit terminates the calling thread with retval.
func (u *User) ThreadExit(retval uint32) {
	_, _ = u.k.trap(u.p, func() (uint32, error) {
		u.k.threadExit(u.p, retval)
		return 0, nil
	})
}

// ThreadJoin waits for thread tid and returns its exit value.
func (u *User) ThreadJoin(tid int) (uint32, error) {
	return u.k.trap(u.p, func() (uint32, error) {
		return u.k.threadJoin(u.p, tid)
	})
}

// Open opens path and returns a file descriptor.
func (u *User) Open(path string, mode int) (int, error) {
	fd, err := u.k.trap(u.p, func() (uint32, error) {
		for fd := range u.p.ofile {
			if u.p.ofile[fd] != nil {
				continue
			}
			f, err := u.k.files.Open(u.k.ctx, path, mode)
			if err != nil {
				return 0, err
			}
			u.p.ofile[fd] = f
			return uint32(fd), nil
		}
		return 0, fmt.Errorf("open %s: no free descriptor: %w", path, ErrResourceExhausted)
	})
	return int(int32(fd)), err
}

// Close releases file descriptor fd.
func (u *User) Close(fd int) error {
	_, err := u.k.trap(u.p, func() (uint32, error) {
		if fd < 0 || fd >= NOFILE || u.p.ofile[fd] == nil {
			return 0, fmt.Errorf("close %d: %w", fd, ErrInvalidArgument)
		}
		u.k.files.Close(u.p.ofile[fd])
		u.p.ofile[fd] = nil
		return 0, nil
	})
	return err
}

// Printf writes a line to the console.
func (u *User) Printf(format string, args ...interface{}) {
	_, _ = u.k.trap(u.p, func() (uint32, error) {
		u.k.cprintf(format, args...)
		return 0, nil
	})
}
