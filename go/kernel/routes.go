package kernel

import (
	"fmt"
	"reflect"

	"github.com/lunixbochs/evcorn/go/models/trace"
)

// Routine is a kernel service. The first six are reachable from guest
// code through svc with the routine's number as the immediate.
type Routine int

const (
	SetEventHandler Routine = iota
	SendEvent
	EventHandlerReturn
	ReadSensor
	SendData
	Print

	TimerTick
	SerialReceive
	Fault
	Unknown
)

// NumSyscalls is the count of guest-callable routines.
const NumSyscalls = int(Print) + 1

var routineNames = [...]string{
	SetEventHandler:    "SetEventHandler",
	SendEvent:          "SendEvent",
	EventHandlerReturn: "EventHandlerReturn",
	ReadSensor:         "ReadSensor",
	SendData:           "SendData",
	Print:              "Print",
	TimerTick:          "TimerTick",
	SerialReceive:      "SerialReceive",
	Fault:              "Fault",
	Unknown:            "Unknown",
}

func (r Routine) String() string {
	if r >= 0 && int(r) < len(routineNames) {
		return routineNames[r]
	}
	return fmt.Sprintf("routine(%d)", int(r))
}

// Classify maps a trap to the routine that services it.
func Classify(t Trap) Routine {
	switch t.Kind {
	case TrapSyscall:
		if t.Num < uint32(NumSyscalls) {
			return Routine(t.Num)
		}
	case TrapInterrupt:
		switch t.Line {
		case LineTimer:
			return TimerTick
		case LineSerialRx:
			return SerialReceive
		}
	case TrapFault:
		return Fault
	}
	return Unknown
}

// invoke runs routine r for cur and returns the event to run next.
func (k *Kernel) invoke(r Routine, cur *ControlBlock, t Trap) (*ControlBlock, error) {
	switch t.Kind {
	case TrapSyscall:
		k.record(trace.OP_SYSCALL, cur.ID, t.Num, 0)
	case TrapInterrupt:
		k.logf(k.Config.TraceIrq, "irq", "%s in %s -> %s", t, cur, r)
		k.record(trace.OP_IRQ, cur.ID, t.Num, 0)
	}
	switch r {
	case SetEventHandler:
		return k.call(r, cur, k.setEventHandler)
	case SendEvent:
		return k.call(r, cur, k.sendEvent)
	case EventHandlerReturn:
		return k.eventHandlerReturn(cur)
	case ReadSensor:
		return k.call(r, cur, k.readSensor)
	case SendData:
		return k.call(r, cur, k.sendData)
	case Print:
		return k.call(r, cur, k.print)
	case TimerTick:
		return k.timerTick(cur), nil
	case SerialReceive:
		return k.serialReceive(cur), nil
	case Fault:
		return nil, k.fault(cur, t)
	case Unknown:
		return k.unknown(cur, t), nil
	}
	panic(fmt.Sprintf("unhandled routine %v", r))
}

// call decodes the staged syscall arguments into the parameters of fn
// after the leading control block, and calls it.
func (k *Kernel) call(r Routine, cur *ControlBlock, fn interface{}) (*ControlBlock, error) {
	v := reflect.ValueOf(fn)
	typ := v.Type()
	in := make([]reflect.Type, typ.NumIn()-1)
	for i := range in {
		in[i] = typ.In(i + 1)
	}
	args, err := cur.Args(k.platform)
	if err != nil {
		return nil, k.fatal(err, "%s arguments", r)
	}
	converted, err := k.argjoy.Convert(in, false, args)
	if err != nil {
		k.warnf("%s: %s: bad arguments: %v", cur, r, err)
		return cur, nil
	}
	if k.Config.TraceSys || k.Config.Verbose {
		vals := make([]interface{}, len(converted))
		for i, c := range converted {
			vals[i] = c.Interface()
		}
		k.logf(true, "sys", "%s: %s%v", cur, r, vals)
	}
	out := v.Call(append([]reflect.Value{reflect.ValueOf(cur)}, converted...))
	next, _ := out[0].Interface().(*ControlBlock)
	err, _ = out[1].Interface().(error)
	return next, err
}
