package board

import (
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/cpu/mcu"
	"github.com/lunixbochs/evcorn/go/kernel"
	"github.com/lunixbochs/evcorn/go/models"
	"github.com/lunixbochs/evcorn/go/models/cpu"
	"github.com/lunixbochs/evcorn/go/serial"
)

// memory map
const (
	VECTOR_BASE = 0x1000
	VECTOR_SIZE = PAGE_SIZE
	CODE_BASE   = 0x10000
	RAM_BASE    = 0x20000000
	RAM_SIZE    = 0x10000
)

const UART_IRQ = 0

// Board is the emulated controller: core, UART and RAM allocator.
type Board struct {
	Cpu    *mcu.Mcu
	Uart   *serial.Uart
	Alloc  *Allocator
	Config *models.Config

	exitStub uint32
}

// New brings the board up to the point where the kernel can take over:
// RAM allocator, exception vectors, SysTick and the UART receive
// interrupt. Transmitted serial bytes go to tx.
func New(config *models.Config, tx io.Writer) (*Board, error) {
	config = config.Init()
	c := mcu.New()
	c.Budget = config.Budget
	b := &Board{
		Cpu:    c,
		Config: config,
		Alloc:  NewAllocator(c.Mem, RAM_BASE, RAM_SIZE),
	}
	if err := b.mapVectors(); err != nil {
		return nil, err
	}

	c.SysTick.Enable(uint64(config.TimerReload))

	b.Uart = serial.NewUart(tx, c.Wake)
	c.Nvic.Attach(UART_IRQ, b.Uart.Pending)
	c.Nvic.Enable(UART_IRQ)
	b.Uart.SetRxWatermark(serial.MessageSize)
	b.Uart.EnableRxInterrupt(true)

	if config.TraceExec {
		if err := b.traceExec(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// mapVectors maps the kernel page holding the exit stub handlers return
// into.
func (b *Board) mapVectors() error {
	stub := mcu.NewAsm(VECTOR_BASE).
		Label("exit").
		Svc(uint32(kernel.EventHandlerReturn)).
		B("exit")
	code, _, err := stub.Assemble()
	if err != nil {
		return err
	}
	if err := b.Cpu.MemMapProt(VECTOR_BASE, VECTOR_SIZE, cpu.PROT_READ|cpu.PROT_EXEC, "vectors"); err != nil {
		return errors.Wrap(err, "mapping vectors")
	}
	b.exitStub = VECTOR_BASE
	return b.Cpu.MemWrite(VECTOR_BASE, code)
}

// Load maps the image code read-only and executable at its base.
func (b *Board) Load(img *Image) error {
	addr, size := align(img.Base, uint64(len(img.Code)))
	if err := b.Cpu.MemMapProt(addr, size, cpu.PROT_READ|cpu.PROT_EXEC, "image"); err != nil {
		return errors.Wrap(err, "mapping image")
	}
	return b.Cpu.MemWrite(img.Base, img.Code)
}

// traceExec prints each executed instruction, folding tight loops such as
// the idle wfi loop into a single line.
func (b *Board) traceExec() error {
	var dis mcu.Dis
	loops := models.NewLoopDetect(8)
	_, err := b.Cpu.HookAdd(cpu.HOOK_CODE, func(_ cpu.Cpu, addr uint64, size uint32) {
		elide, body, count := loops.Update(addr)
		if body != nil && count > 0 {
			b.Config.Printf("  ... %d instruction loop at %#x, %d more times\n", len(body), body[0], count)
		}
		if elide {
			return
		}
		mem, err := b.Cpu.MemRead(addr, uint64(size))
		if err != nil {
			return
		}
		if s, err := dis.Dis(mem, addr, false); err == nil {
			b.Config.Printf("%s\n", s)
		}
	}, 1, 0)
	return err
}

func (b *Board) Cycles() uint64 { return b.Cpu.Cycles() }

func (b *Board) MemReadInto(p []byte, addr uint64) error {
	return b.Cpu.MemReadInto(p, addr)
}

func (b *Board) MemWrite(addr uint64, p []byte) error {
	return b.Cpu.MemWrite(addr, p)
}

func (b *Board) ExitStub() uint32 { return b.exitStub }

func (b *Board) ThreadPSR() uint32 { return mcu.PSR_T }

// Stop interrupts a running kernel at the next instruction. Safe from any
// goroutine.
func (b *Board) Stop() error {
	return b.Cpu.Stop()
}
