package kproc

import (
	"io"
	"os"

	"github.com/viant/kproc/runtime/kernel"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/file"
	"github.com/viant/kproc/service/mem"
	"github.com/viant/kproc/service/messaging/memory"
	"github.com/viant/kproc/service/vm"
	"github.com/viant/kproc/tracing"
)

// Service wires the page allocator, address spaces, files, events and the
// kernel behind a Runtime.
type Service struct {
	config        *Config
	console       io.Writer
	eventService  *event.Service
	kernelOptions []kernel.Option
	memory        *mem.Service
	files         *file.Service
	runtime       *Runtime
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.memory = mem.New(s.config.Kernel.Frames)
	s.files = file.New(s.config.Storage.BaseURL)
	kernelConfig := s.config.Kernel
	kernelOptions := []kernel.Option{
		kernel.WithConfig(&kernelConfig),
		kernel.WithConsole(s.console),
		kernel.WithMemory(s.memory),
		kernel.WithVM(vm.New(s.memory)),
		kernel.WithFiles(s.files),
		kernel.WithEvents(s.eventService),
	}
	s.runtime.kernel = kernel.New(append(kernelOptions, s.kernelOptions...)...)
	s.runtime.events = s.eventService
	s.runtime.config = s.config
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.console == nil {
		s.console = os.Stdout
	}
	if s.eventService == nil {
		events := s.config.Events
		s.eventService = event.New(event.WithQueueConfig(func(string) memory.Config {
			return memory.Config{MaxRetries: events.MaxRetries, QueueBuffer: events.QueueBuffer}
		}))
	}
	if tc := s.config.Tracing; tc.Enabled {
		_ = tracing.Init(tc.ServiceName, tc.Version, tc.OutputFile)
	}
}

// Runtime returns the management runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Events returns the lifecycle event service.
func (s *Service) Events() *event.Service {
	return s.eventService
}

// Memory returns the physical page allocator.
func (s *Service) Memory() *mem.Service {
	return s.memory
}

// OnEvent registers handler for every lifecycle event, replacing a previous one.
func (s *Service) OnEvent(handler func(e *event.Event[kernel.Lifecycle])) {
	event.SetListenerOf[kernel.Lifecycle](s.eventService, handler)
}

// New creates a service; call Runtime().Start to boot it.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}
