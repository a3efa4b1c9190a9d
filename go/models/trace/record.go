package trace

import (
	"fmt"
)

const (
	OP_SWITCH   = 1 // current event changed
	OP_SYSCALL  = 2 // syscall serviced
	OP_IRQ      = 3 // hardware interrupt serviced
	OP_SIGNAL   = 4 // event signalled
	OP_COALESCE = 5 // signal dropped: already pending or running
	OP_UNKNOWN  = 6 // unknown service or interrupt
	OP_FAULT    = 7
)

var opNames = map[uint8]string{
	OP_SWITCH:   "switch",
	OP_SYSCALL:  "syscall",
	OP_IRQ:      "irq",
	OP_SIGNAL:   "signal",
	OP_COALESCE: "coalesce",
	OP_UNKNOWN:  "unknown",
	OP_FAULT:    "fault",
}

// Record is one kernel event. Event is the event current when it happened,
// Target the one it refers to (switch destination, signalled event).
type Record struct {
	Cycle  uint64
	Op     uint8
	Event  uint8
	Target uint8
	Pad    uint8
	Num    uint32
	Arg    uint32
}

func (r *Record) OpName() string {
	if name, ok := opNames[r.Op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", r.Op)
}

func (r *Record) String() string {
	head := fmt.Sprintf("%10d [%d] %-8s", r.Cycle, r.Event, r.OpName())
	switch r.Op {
	case OP_SWITCH:
		return fmt.Sprintf("%s -> %d sp=%#x", head, r.Target, r.Arg)
	case OP_SIGNAL, OP_COALESCE:
		return fmt.Sprintf("%s event %d", head, r.Target)
	case OP_SYSCALL:
		return fmt.Sprintf("%s %d = %#x", head, r.Num, r.Arg)
	default:
		return fmt.Sprintf("%s %d %#x", head, r.Num, r.Arg)
	}
}
