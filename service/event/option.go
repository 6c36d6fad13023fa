package event

import "github.com/viant/kproc/service/messaging/memory"

type Option func(s *Service)

// WithQueueConfig sets the per-queue memory configuration
func WithQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.newQueueConfig = newConfig
	}
}
