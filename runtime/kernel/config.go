package kernel

import (
	"fmt"
	"time"
)

// Config holds kernel settings.
type Config struct {
	CPUs          int           `json:"cpus" yaml:"cpus"`
	Frames        int           `json:"frames" yaml:"frames"`
	TickInterval  time.Duration `json:"tickInterval" yaml:"tickInterval"`
	StackPages    int           `json:"stackPages" yaml:"stackPages"`
	MaxStackPages int           `json:"maxStackPages" yaml:"maxStackPages"`
	// IsolateReturnValues keys thread return values by process instead of by slot only.
	IsolateReturnValues bool   `json:"isolateReturnValues" yaml:"isolateReturnValues"`
	InitPath            string `json:"initPath" yaml:"initPath"`
}

// DefaultConfig returns the default kernel configuration.
func DefaultConfig() *Config {
	return &Config{
		CPUs:          2,
		Frames:        4096,
		TickInterval:  10 * time.Millisecond,
		StackPages:    1,
		MaxStackPages: 100,
		InitPath:      "/init",
	}
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch {
	case c.CPUs <= 0 || c.CPUs > NCPU:
		return fmt.Errorf("kernel.cpus must be in [1,%d]", NCPU)
	case c.Frames <= 0:
		return fmt.Errorf("kernel.frames must be > 0")
	case c.TickInterval <= 0:
		return fmt.Errorf("kernel.tickInterval must be > 0")
	case c.MaxStackPages <= 0:
		return fmt.Errorf("kernel.maxStackPages must be > 0")
	case c.StackPages <= 0 || c.StackPages > c.MaxStackPages:
		return fmt.Errorf("kernel.stackPages must be in [1,%d]", c.MaxStackPages)
	case c.InitPath == "":
		return fmt.Errorf("kernel.initPath is required")
	}
	return nil
}
