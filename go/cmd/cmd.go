package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/app"
	"github.com/lunixbochs/evcorn/go/board"
	"github.com/lunixbochs/evcorn/go/cpu/mcu"
	"github.com/lunixbochs/evcorn/go/kernel"
	"github.com/lunixbochs/evcorn/go/models"
	"github.com/lunixbochs/evcorn/go/models/trace"
	"github.com/lunixbochs/evcorn/go/serial"
)

// BoardCmd parses the shared board flags, boots the firmware and runs it.
// Subcommands customize it through the hooks.
type BoardCmd struct {
	Config *models.Config
	Flags  *flag.FlagSet

	SetupFlags func() error
	SetupBoard func() error
	RunKernel  func() error
	Teardown   func()

	// Serial output from the guest, os.Stdout when nil.
	Tx io.Writer
	// Kernel diagnostics when -o is not given, os.Stderr when nil.
	Output io.Writer

	Board  *board.Board
	Kernel *kernel.Kernel
}

func NewBoardCmd() *BoardCmd {
	return &BoardCmd{Flags: flag.NewFlagSet("cli", flag.ExitOnError)}
}

// colorAuto reports whether w is a terminal.
func colorAuto(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *BoardCmd) Run(argv []string) int {
	fs := c.Flags
	defaults := models.DefaultConfig()

	verbose := fs.Bool("v", false, "verbose output")
	color := fs.String("color", "auto", "colored output: auto, on, off")
	outfile := fs.String("o", "", "redirect kernel diagnostics to file")
	traceAll := fs.Bool("trace", false, "trace scheduling, syscalls and interrupts")
	sched := fs.Bool("sched", false, "trace context switches")
	strace := fs.Bool("strace", false, "trace syscalls")
	itrace := fs.Bool("itrace", false, "trace interrupts")
	etrace := fs.Bool("etrace", false, "trace guest instructions")
	traceFile := fs.String("to", "", "record a binary kernel trace to file")

	reload := fs.Uint("reload", uint(defaults.TimerReload), "SysTick reload value in cycles")
	period := fs.Int("period", defaults.PeriodicTicks, "timer ticks between periodic events")
	periodEvent := fs.Int("event", defaults.PeriodicEvent, "event signaled by the periodic timer")
	dry := fs.Uint("dry", uint(defaults.DryLevel), "moisture percentage below which the dry alert is sent")
	wet := fs.Uint("wet", uint(defaults.WetLevel), "moisture percentage above which the wet alert is sent")
	stackSize := fs.Uint("stack", uint(defaults.StackSize), "shared stack size in bytes")
	depth := fs.Int("depth", defaults.StackDepth, "maximum shared stack nesting depth")
	budget := fs.Uint64("budget", 0, "stop after this many cycles (0 = forever)")

	moisture := fs.Int("moisture", -1, "inject a soil moisture reading over serial before boot")
	status := fs.Bool("status", false, "print kernel status on exit")
	dis := fs.Bool("dis", false, "print the firmware disassembly and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", argv[0])
		fs.PrintDefaults()
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	fs.Parse(argv[1:])
	if fs.NArg() > 0 {
		fs.Usage()
		return 1
	}

	config := &models.Config{
		Output:  c.Output,
		Verbose: *verbose,

		TraceSched: *sched || *traceAll,
		TraceSys:   *strace || *traceAll,
		TraceIrq:   *itrace || *traceAll,
		TraceExec:  *etrace,

		TimerReload:   uint32(*reload),
		PeriodicTicks: *period,
		PeriodicEvent: *periodEvent,
		DryLevel:      uint32(*dry),
		WetLevel:      uint32(*wet),
		StackSize:     uint32(*stackSize),
		StackDepth:    *depth,
		Budget:        *budget,
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if *outfile != "" {
		out, err := os.Create(*outfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open output file: %v\n", err)
			return 1
		}
		defer out.Close()
		config.Output = out
	}
	switch *color {
	case "on":
		config.Color = true
	case "off":
	default:
		config.Color = *outfile == "" && colorAuto(os.Stderr)
	}
	c.Config = config

	img, err := app.Build(config)
	if err != nil {
		PrintError(os.Stderr, err)
		return 1
	}
	if *dis {
		listing, err := (&mcu.Dis{}).Dis(img.Code, img.Base, true)
		if err != nil {
			PrintError(os.Stderr, err)
			return 1
		}
		fmt.Println(listing)
		return 0
	}

	tx := c.Tx
	if tx == nil {
		tx = os.Stdout
	}
	b, k, err := board.Boot(config, img, tx)
	if err != nil {
		PrintError(os.Stderr, err)
		return 1
	}
	c.Board, c.Kernel = b, k

	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open trace file: %v\n", err)
			return 1
		}
		defer f.Close()
		tw, err := trace.NewWriter(f, kernel.Capacity)
		if err != nil {
			PrintError(os.Stderr, err)
			return 1
		}
		defer tw.Close()
		k.Trace = tw
	}
	if *moisture >= 0 {
		b.Uart.InjectMessage(serial.NewMessage(serial.ChangeSoilMoisture, uint32(*moisture)))
	}
	if c.SetupBoard != nil {
		if err := c.SetupBoard(); err != nil {
			PrintError(os.Stderr, err)
			return 1
		}
	}
	if c.Teardown != nil {
		defer c.Teardown()
	}

	if c.RunKernel != nil {
		err = c.RunKernel()
	} else {
		err = k.Run()
	}
	if *status {
		fmt.Fprint(config.Output, k.Status())
	}
	switch errors.Cause(err) {
	case nil, mcu.ErrBudget, mcu.ErrStopped:
		if config.Verbose {
			config.Printf("stopped after %d cycles\n", b.Cycles())
		}
		return 0
	}
	PrintError(os.Stderr, err)
	return 1
}
