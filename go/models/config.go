package models

import (
	"fmt"
	"io"
	"os"

	"github.com/mgutz/ansi"
)

type Config struct {
	Output  io.Writer
	Color   bool
	Verbose bool

	TraceSched bool
	TraceSys   bool
	TraceIrq   bool
	TraceExec  bool

	// SysTick reload value in cycles.
	TimerReload uint32
	// Timer ticks between periodic events.
	PeriodicTicks int
	PeriodicEvent int

	// Soil moisture thresholds in percent. The dry watcher signals the dry
	// event below DryLevel, the wet watcher signals the wet event above
	// WetLevel.
	DryLevel uint32
	WetLevel uint32

	StackSize  uint32
	StackDepth int

	// Cycle budget for a run, 0 for unlimited.
	Budget uint64
}

func DefaultConfig() *Config {
	return &Config{
		Output:        os.Stderr,
		TimerReload:   1000,
		PeriodicTicks: 10,
		PeriodicEvent: 1,
		DryLevel:      30,
		WetLevel:      50,
		StackSize:     0x1000,
		StackDepth:    4,
	}
}

func (c *Config) Init() *Config {
	if c == nil {
		c = DefaultConfig()
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	return c
}

func (c *Config) Printf(f string, args ...interface{}) {
	fmt.Fprintf(c.Output, f, args...)
}

// Colorize wraps s in the ansi style when color output is on.
func (c *Config) Colorize(s, style string) string {
	if !c.Color {
		return s
	}
	return ansi.ColorCode(style) + s + ansi.Reset
}
