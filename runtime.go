package kproc

import (
	"context"
	"io"

	"github.com/viant/kproc/runtime/kernel"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/tracing"
)

// Runtime is the management surface of a kernel. Every call runs in the
// kernel's console context.
type Runtime struct {
	config *Config
	kernel *kernel.Kernel
	events *event.Service
}

// Kernel returns the underlying kernel.
func (r *Runtime) Kernel() *kernel.Kernel {
	return r.kernel
}

// Start validates the configuration and boots the kernel.
func (r *Runtime) Start(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "runtime.Start", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithInt("kernel.cpus", r.config.Kernel.CPUs)
	if err = r.config.Validate(); err != nil {
		return err
	}
	return r.kernel.Start(ctx)
}

// Shutdown stops the kernel and the event listeners.
func (r *Runtime) Shutdown(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "runtime.Shutdown", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	err = r.kernel.Shutdown(ctx)
	r.events.Close()
	return err
}

// Install links program and stores its image at path.
func (r *Runtime) Install(ctx context.Context, path string, program kernel.Program) (err error) {
	ctx, span := tracing.StartSpan(ctx, "runtime.Install", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"image.path": path, "image.entry": program.Entry})
	return r.kernel.Link(ctx, path, program)
}

// ProcList lists live processes in table order.
func (r *Runtime) ProcList(ctx context.Context) ([]kernel.ProcInfo, error) {
	_, span := tracing.StartSpan(ctx, "runtime.ProcList", tracing.KindInternal)
	list := r.kernel.ProcList()
	span.WithInt("proc.count", len(list))
	tracing.EndSpan(span, nil)
	return list, nil
}

// Kill marks pid killed; it exits at its next trap.
func (r *Runtime) Kill(ctx context.Context, pid int) (err error) {
	_, span := tracing.StartSpan(ctx, "runtime.Kill", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithInt("proc.pid", pid)
	return r.kernel.Kill(pid)
}

// Execute runs the image at path as a new child of init and returns its pid.
func (r *Runtime) Execute(ctx context.Context, path string, stackPages int) (pid int, err error) {
	ctx, span := tracing.StartSpan(ctx, "runtime.Execute", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"image.path": path}).WithInt("proc.stackPages", stackPages)
	pid, err = r.kernel.Spawn(ctx, path, stackPages)
	span.WithInt("proc.pid", pid)
	return pid, err
}

// SetMemoryLimit caps the memory of pid; 0 removes the cap.
func (r *Runtime) SetMemoryLimit(ctx context.Context, pid, limit int) (err error) {
	_, span := tracing.StartSpan(ctx, "runtime.SetMemoryLimit", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	span.WithInt("proc.pid", pid).WithInt("proc.limit", limit)
	return r.kernel.SetMemoryLimit(pid, limit)
}

// Dump writes the process and thread table to w.
func (r *Runtime) Dump(ctx context.Context, w io.Writer) error {
	_, span := tracing.StartSpan(ctx, "runtime.Dump", tracing.KindInternal)
	r.kernel.Dump(w)
	tracing.EndSpan(span, nil)
	return nil
}
