package board

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/cpu/mcu"
	"github.com/lunixbochs/evcorn/go/kernel"
	"github.com/lunixbochs/evcorn/go/models"
)

// Resume switches from the kernel into the event whose saved frame is at
// sp and runs it until the next exception.
//
// The frame is r4-r11 as saved here below the hardware frame. r4-r11 are
// restored, PSP is pointed at the hardware frame and the exception return
// unstacks the rest and drops to unprivileged Thread mode with interrupts
// unmasked. When Run stopped early (budget, Stop) the core is still in
// Thread mode and Resume simply continues it.
func (b *Board) Resume(sp uint32) (kernel.Trap, error) {
	c := b.Cpu
	if c.Handler() {
		f, err := models.ReadFrame(c, sp)
		if err != nil {
			return kernel.Trap{}, errors.Wrap(err, "resume")
		}
		for i, v := range f.Soft() {
			c.RegWrite(mcu.R4+i, uint64(v))
		}
		c.RegWrite(mcu.PSP, uint64(sp+models.SoftFrameSize))
		c.RegWrite(mcu.PRIMASK, 0)
		if err := c.ExceptionReturn(); err != nil {
			return kernel.Trap{}, err
		}
	}
	exc, err := c.Run()
	if err != nil {
		return kernel.Trap{}, err
	}
	return b.save(exc), nil
}

// save pushes r4-r11 under the hardware frame and identifies the trap.
func (b *Board) save(exc uint32) kernel.Trap {
	c := b.Cpu
	t := kernel.Trap{Num: exc}
	switch {
	case exc == mcu.EXC_SVCALL:
		t.Kind = kernel.TrapSyscall
	case exc == mcu.EXC_SYSTICK:
		t.Kind, t.Line = kernel.TrapInterrupt, kernel.LineTimer
	case exc == mcu.EXC_IRQ0+UART_IRQ:
		t.Kind, t.Line = kernel.TrapInterrupt, kernel.LineSerialRx
	case exc >= mcu.EXC_IRQ0:
		t.Kind, t.Line = kernel.TrapInterrupt, kernel.LineUnknown
	default:
		t.Kind = kernel.TrapFault
	}
	if c.StackErr {
		t.Kind, t.StackErr = kernel.TrapFault, true
		return t
	}

	psp, _ := c.RegRead(mcu.PSP)
	sp := uint32(psp) - models.SoftFrameSize
	f, err := models.ReadFrame(c, sp)
	if err == nil {
		soft := make([]uint32, 8)
		for i := range soft {
			v, _ := c.RegRead(mcu.R4 + i)
			soft[i] = uint32(v)
		}
		f.SetSoft(soft)
		err = models.WriteFrame(c, sp, f)
	}
	if err != nil {
		t.Kind, t.StackErr = kernel.TrapFault, true
		return t
	}
	c.RegWrite(mcu.PSP, uint64(sp))
	t.SP = sp

	if t.Kind == kernel.TrapSyscall {
		num, err := c.SvcNumber(f.PC)
		if err != nil {
			t.Kind = kernel.TrapFault
		} else {
			t.Num = num
		}
	}
	return t
}
