package models

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	// SoftFrameSize is the part of a frame saved by the context switch.
	SoftFrameSize = 32
	// HardFrameSize is the part stacked by the processor on exception entry.
	HardFrameSize = 32
	FrameSize     = SoftFrameSize + HardFrameSize
)

// Frame is a full saved register context as it sits on the shared stack,
// lowest address first.
type Frame struct {
	R4, R5, R6, R7, R8, R9, R10, R11 uint32

	R0, R1, R2, R3 uint32
	R12            uint32
	LR, PC         uint32
	XPSR           uint32
}

// Soft returns the registers the context switch saves, r4 first.
func (f *Frame) Soft() []uint32 {
	return []uint32{f.R4, f.R5, f.R6, f.R7, f.R8, f.R9, f.R10, f.R11}
}

func (f *Frame) SetSoft(regs []uint32) {
	dst := []*uint32{&f.R4, &f.R5, &f.R6, &f.R7, &f.R8, &f.R9, &f.R10, &f.R11}
	for i, r := range regs {
		if i < len(dst) {
			*dst[i] = r
		}
	}
}

// Args returns the staged syscall argument words.
func (f *Frame) Args() []uint64 {
	return []uint64{uint64(f.R0), uint64(f.R1), uint64(f.R2), uint64(f.R3)}
}

func (f *Frame) String() string {
	return fmt.Sprintf("pc=%#08x lr=%#08x xpsr=%#08x r0=%#x r1=%#x r2=%#x r3=%#x",
		f.PC, f.LR, f.XPSR, f.R0, f.R1, f.R2, f.R3)
}

func ReadFrame(mem Memory, sp uint32) (*Frame, error) {
	f := &Frame{}
	if err := StrucAt(mem, uint64(sp)).Unpack(f); err != nil {
		return nil, errors.Wrapf(err, "read frame at %#x", sp)
	}
	return f, nil
}

func WriteFrame(mem Memory, sp uint32, f *Frame) error {
	if err := StrucAt(mem, uint64(sp)).Pack(f); err != nil {
		return errors.Wrapf(err, "write frame at %#x", sp)
	}
	return nil
}
