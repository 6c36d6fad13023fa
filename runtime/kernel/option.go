package kernel

import (
	"io"
	"log"

	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/file"
	"github.com/viant/kproc/service/mem"
	"github.com/viant/kproc/service/vm"
)

// Option configures a Kernel.
type Option func(k *Kernel)

// WithConfig sets the kernel configuration.
func WithConfig(config *Config) Option {
	return func(k *Kernel) { k.config = config }
}

// WithConsole redirects console output.
func WithConsole(w io.Writer) Option {
	return func(k *Kernel) { k.console = log.New(w, "", 0) }
}

// WithMemory sets the physical page allocator.
func WithMemory(memory *mem.Service) Option {
	return func(k *Kernel) { k.mem = memory }
}

// WithVM sets the address-space manager.
func WithVM(manager vm.Service) Option {
	return func(k *Kernel) { k.vm = manager }
}

// WithFiles sets the file layer.
func WithFiles(files *file.Service) Option {
	return func(k *Kernel) { k.files = files }
}

// WithEvents publishes lifecycle events through the event service.
func WithEvents(events *event.Service) Option {
	return func(k *Kernel) { k.events = event.PublisherOf[Lifecycle](events) }
}
