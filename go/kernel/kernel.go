package kernel

import (
	"fmt"

	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/models"
	"github.com/lunixbochs/evcorn/go/models/trace"
)

// FatalError halts the kernel. Event is the event that was current.
type FatalError struct {
	Reason string
	Event  EventID
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("kernel halted in %s: %s", e.Event, e.Reason)
	}
	return fmt.Sprintf("kernel halted in %s: %s: %v", e.Event, e.Reason, e.Err)
}

// IsFatal returns the FatalError behind err, if any.
func IsFatal(err error) (*FatalError, bool) {
	fe, ok := errors.Cause(err).(*FatalError)
	return fe, ok
}

type Kernel struct {
	Config *models.Config
	Trace  *trace.TraceWriter

	platform Platform
	serial   Serial
	registry *Registry
	sched    *Scheduler
	stack    *Stack
	sensors  *Sensors
	argjoy   argjoy.Argjoy

	current   *ControlBlock
	periodic  *ControlBlock
	countdown int
	halted    error
}

// New creates a kernel managing the shared stack region
// [stackBase, stackBase+stackSize). Handlers are bound with Register
// before the first Run.
func New(p Platform, ser Serial, stackBase, stackSize uint32, config *models.Config) (*Kernel, error) {
	config = config.Init()
	stack, err := NewStack(p, stackBase, stackSize, config.StackDepth)
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	periodic, err := registry.Get(EventID(config.PeriodicEvent))
	if err != nil {
		return nil, errors.Wrap(err, "periodic event")
	}
	k := &Kernel{
		Config:   config,
		platform: p,
		serial:   ser,
		registry: registry,
		sched:    NewScheduler(registry.Idle()),
		stack:    stack,
		sensors:  NewSensors(),
		periodic: periodic,
	}
	k.resetCountdown()
	k.argjoy.Register(k.argCodec)
	k.argjoy.Register(argjoy.IntToInt)
	return k, nil
}

func (k *Kernel) Register(id EventID, handler Ptr) error {
	return k.registry.Register(id, handler)
}

func (k *Kernel) Registry() *Registry    { return k.registry }
func (k *Kernel) Scheduler() *Scheduler  { return k.sched }
func (k *Kernel) Stack() *Stack          { return k.stack }
func (k *Kernel) Sensors() *Sensors      { return k.sensors }
func (k *Kernel) Current() *ControlBlock { return k.current }

// Halted returns the fatal error that stopped the kernel, if any.
func (k *Kernel) Halted() error { return k.halted }

func (k *Kernel) resetCountdown() {
	k.countdown = k.Config.PeriodicTicks
	if k.countdown < 1 {
		k.countdown = 1
	}
}

// Start lays out the idle frame and makes idle current.
func (k *Kernel) Start() error {
	if k.current != nil {
		return nil
	}
	idle := k.registry.Idle()
	if !idle.Bound() {
		return k.fatal(nil, "idle event has no handler")
	}
	if err := k.buildTrampoline(nil, idle); err != nil {
		return k.fatal(err, "idle trampoline")
	}
	k.switchTo(idle)
	return nil
}

// Run dispatches traps until the platform stops or the kernel halts.
// A platform error leaves the kernel consistent and Run may be called
// again; a *FatalError is final.
func (k *Kernel) Run() error {
	for {
		if err := k.Step(); err != nil {
			return err
		}
	}
}

// Step resumes the current event and services the trap that stops it.
func (k *Kernel) Step() error {
	if k.halted != nil {
		return k.halted
	}
	if err := k.Start(); err != nil {
		return err
	}
	cur := k.current
	if err := k.stack.Resume(cur); err != nil {
		return k.fatal(err, "resume")
	}
	trap, err := k.platform.Resume(cur.SP)
	if err != nil {
		return err
	}
	return k.Handle(trap)
}

// Handle services a trap taken by the current event.
func (k *Kernel) Handle(trap Trap) error {
	if k.halted != nil {
		return k.halted
	}
	cur := k.current
	if trap.StackErr {
		return k.fatal(ErrStackOverflow, "%s could not save its frame on %s", cur, trap)
	}
	if err := k.stack.Save(cur, trap.SP); err != nil {
		return k.fatal(err, "save %s", cur)
	}
	cur.SP = trap.SP

	next, err := k.invoke(Classify(trap), cur, trap)
	if err != nil {
		return err
	}
	for next != cur && !next.started && !next.Bound() {
		k.warnf("%s lost its handler while pending, skipped", next)
		next = k.sched.OnTaskTerminated(next)
	}
	if next != cur {
		if !next.started {
			if err := k.buildTrampoline(k.stack.Innermost(), next); err != nil {
				return k.fatal(err, "start %s", next)
			}
		}
		k.switchTo(next)
	}
	return nil
}

func (k *Kernel) switchTo(next *ControlBlock) {
	from := IdleEvent
	if k.current != nil {
		from = k.current.ID
	}
	k.logf(k.Config.TraceSched, "sched", "%s -> %s sp=%#x depth=%d", from, next, next.SP, k.stack.Depth())
	k.record(trace.OP_SWITCH, next.ID, 0, next.SP)
	k.current = next
}

func (k *Kernel) fatal(err error, format string, a ...interface{}) error {
	ev := IdleEvent
	if k.current != nil {
		ev = k.current.ID
	}
	fe := &FatalError{Reason: fmt.Sprintf(format, a...), Event: ev, Err: err}
	k.Config.Printf("%s\n", k.Config.Colorize("[fatal] "+fe.Error(), "red+b"))
	k.record(trace.OP_FAULT, ev, 0, 0)
	k.halted = errors.WithStack(fe)
	return k.halted
}

func (k *Kernel) logf(on bool, tag, format string, a ...interface{}) {
	if !on && !k.Config.Verbose {
		return
	}
	k.Config.Printf("[%s] %s\n", tag, fmt.Sprintf(format, a...))
}

// warnf reports a condition the kernel recovers from.
func (k *Kernel) warnf(format string, a ...interface{}) {
	k.Config.Printf("%s\n", k.Config.Colorize("[warn] "+fmt.Sprintf(format, a...), "yellow"))
}

func (k *Kernel) record(op uint8, target EventID, num, arg uint32) {
	if k.Trace == nil {
		return
	}
	r := &trace.Record{Op: op, Target: uint8(target), Num: num, Arg: arg}
	if k.current != nil {
		r.Event = uint8(k.current.ID)
	}
	if c, ok := k.platform.(interface{ Cycles() uint64 }); ok {
		r.Cycle = c.Cycles()
	}
	if err := k.Trace.Pack(r); err != nil {
		k.warnf("trace disabled: %v", err)
		k.Trace = nil
	}
}
