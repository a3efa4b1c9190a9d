package kernel

import (
	"fmt"
)

// Capacity is the size of the event table, idle included.
const Capacity = 4

// EventID names an event. Lower ids run first; IdleEvent always runs last.
type EventID uint8

const IdleEvent EventID = 0

func (e EventID) String() string {
	if e == IdleEvent {
		return "idle"
	}
	return fmt.Sprintf("event %d", uint8(e))
}

// Ptr is a guest address.
type Ptr uint32

// Len is a guest buffer length.
type Len uint32

type TrapKind int

const (
	TrapSyscall TrapKind = iota
	TrapInterrupt
	TrapFault
)

// Line identifies the device behind an interrupt.
type Line int

const (
	LineUnknown Line = iota
	LineTimer
	LineSerialRx
)

// Trap is what stopped unprivileged execution.
type Trap struct {
	Kind TrapKind
	// SVC immediate for syscalls, exception number otherwise.
	Num  uint32
	Line Line
	// Stack pointer of the saved frame.
	SP uint32
	// Set when the frame could not be saved. SP is not valid.
	StackErr bool
}

func (t Trap) String() string {
	switch t.Kind {
	case TrapSyscall:
		return fmt.Sprintf("svc #%d", t.Num)
	case TrapInterrupt:
		return fmt.Sprintf("irq %d", t.Num)
	default:
		return fmt.Sprintf("fault %d", t.Num)
	}
}

// Memory is guest memory as seen from privileged code.
type Memory interface {
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

// Platform performs the privilege-crossing context switch.
type Platform interface {
	Memory
	// Resume restores the frame at sp in unprivileged mode and runs it
	// until the next trap.
	Resume(sp uint32) (Trap, error)
	// ExitStub is the guest address handlers return into. The code there
	// issues EventHandlerReturn.
	ExitStub() uint32
	// ThreadPSR is the status word a fresh handler starts with.
	ThreadPSR() uint32
}

// Serial is the line used by SendData, Print and serial receive.
type Serial interface {
	Send(p []byte) (int, error)
	Receive(p []byte) (int, error)
	Buffered() int
	ClearInterrupt()
}
