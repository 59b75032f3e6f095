// Package config loads the runtime tunables from the environment. All
// variables are prefixed with NELUMBO_ and have sensible defaults, so an
// empty environment yields a working configuration.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Runtime holds the spawn-time tunables of the script-thread runtime.
type Runtime struct {
	// StepInterval is the number of machine steps between interruption
	// checks in spawned threads.
	StepInterval int `env:"STEP_INTERVAL" envDefault:"100"`

	// PinOSThread locks each spawned thread to its own OS thread.
	PinOSThread bool `env:"PIN_OS_THREAD" envDefault:"false"`

	// DemoThreads is the number of threads spawned by the demo command.
	DemoThreads int `env:"DEMO_THREADS" envDefault:"4"`
}

// Load parses the runtime configuration from the environment.
func Load() (*Runtime, error) {
	var c Runtime
	if err := env.Parse(&c, env.Options{Prefix: "NELUMBO_"}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if c.StepInterval <= 0 {
		return nil, fmt.Errorf("config: STEP_INTERVAL must be > 0, got %d", c.StepInterval)
	}
	if c.DemoThreads <= 0 {
		return nil, fmt.Errorf("config: DEMO_THREADS must be > 0, got %d", c.DemoThreads)
	}
	return &c, nil
}
