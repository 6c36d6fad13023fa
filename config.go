package kproc

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/kproc/runtime/kernel"
	"github.com/viant/kproc/service/file"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the runtime configuration. It can
// be populated from YAML or JSON; omitted fields keep their defaults when
// loaded with LoadConfig.
type Config struct {
	Kernel  kernel.Config `json:"kernel" yaml:"kernel"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Events  EventsConfig  `json:"events" yaml:"events"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// StorageConfig locates the file system holding executable images.
type StorageConfig struct {
	BaseURL string `json:"baseURL" yaml:"baseURL"`
}

// EventsConfig sizes the lifecycle event queue.
type EventsConfig struct {
	QueueBuffer int `json:"queueBuffer" yaml:"queueBuffer"`
	MaxRetries  int `json:"maxRetries" yaml:"maxRetries"`
}

// TracingConfig enables the stdout span exporter.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Version     string `json:"version" yaml:"version"`
	OutputFile  string `json:"outputFile" yaml:"outputFile"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Kernel:  *kernel.DefaultConfig(),
		Storage: StorageConfig{BaseURL: file.DefaultBaseURL},
		Events:  EventsConfig{QueueBuffer: 1024, MaxRetries: 3},
		Tracing: TracingConfig{ServiceName: "kproc", Version: "dev"},
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Kernel.Validate(); err != nil {
		return err
	}
	if c.Storage.BaseURL == "" {
		return fmt.Errorf("storage.baseURL is required")
	}
	if c.Events.QueueBuffer <= 0 {
		return fmt.Errorf("events.queueBuffer must be > 0")
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		return fmt.Errorf("tracing.serviceName is required when tracing is enabled")
	}
	return nil
}

// LoadConfig reads a YAML (or JSON) config from URL on top of DefaultConfig.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return cfg, nil
}
