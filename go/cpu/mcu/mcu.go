package mcu

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/models/cpu"
)

var (
	ErrStopped     = errors.New("cpu stopped")
	ErrBudget      = errors.New("cycle budget exhausted")
	ErrWaitForever = errors.New("wfi with no interrupt source")
)

// Mcu is a single-core microcontroller interpreter with Cortex-M style exception handling.
// Privileged code is not interpreted: Handler mode belongs to the host, which regains
// control from Run each time Thread mode takes an exception.
type Mcu struct {
	*cpu.Hooks
	*cpu.Regs
	*cpu.Mem

	Nvic    Nvic
	SysTick SysTick
	// Budget stops Run once this many cycles have executed (0 disables).
	Budget uint64
	// StackErr is set when the last exception entry could not stack its frame.
	// The exception is escalated to HardFault and PSP is left untouched.
	StackErr bool

	cycles  uint64
	handler bool
	stop    int32
	wake    chan struct{}
}

func New() *Mcu {
	m := &Mcu{
		Regs: cpu.NewRegs(32, []int{
			R0, R1, R2, R3, R4, R5, R6, R7, R8, R9, R10, R11, R12,
			LR, PC, XPSR,
			MSP, PSP, PRIMASK, CONTROL,
		}),
		Mem:     cpu.NewMem(32, binary.LittleEndian),
		wake:    make(chan struct{}, 1),
		handler: true,
	}
	m.Hooks = cpu.NewHooks(m, m.Mem)
	m.Regs.RegWrite(XPSR, PSR_T)
	return m
}

func (m *Mcu) spReg() int {
	ctl, _ := m.Regs.RegRead(CONTROL)
	if !m.handler && ctl&CONTROL_SPSEL != 0 {
		return PSP
	}
	return MSP
}

func (m *Mcu) RegRead(enum int) (uint64, error) {
	if enum == SP {
		enum = m.spReg()
	}
	return m.Regs.RegRead(enum)
}

func (m *Mcu) RegWrite(enum int, val uint64) error {
	if enum == SP {
		enum = m.spReg()
	}
	return m.Regs.RegWrite(enum, val)
}

func (m *Mcu) reg(enum int) uint32 {
	val, _ := m.RegRead(enum)
	return uint32(val)
}

func (m *Mcu) setReg(enum int, val uint32) {
	m.RegWrite(enum, uint64(val))
}

// Handler reports whether the core is in Handler (exception) mode.
func (m *Mcu) Handler() bool { return m.handler }

func (m *Mcu) Privileged() bool {
	return m.handler || m.reg(CONTROL)&CONTROL_NPRIV == 0
}

func (m *Mcu) Cycles() uint64 { return m.cycles }

// Stop makes Run return ErrStopped at the next instruction boundary. Safe from any goroutine.
func (m *Mcu) Stop() error {
	atomic.StoreInt32(&m.stop, 1)
	m.Wake()
	return nil
}

// Wake unblocks a WFI waiting without a timer. Devices call it when they raise a line.
func (m *Mcu) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mcu) Close() error {
	return nil
}

func (m *Mcu) tick(n uint64) {
	m.cycles += n
	if m.SysTick.advance(n) {
		m.Nvic.pendSysTick()
	}
}

// enter takes exception exc: the hardware frame (r0-r3, r12, lr, retPC, xpsr) is
// stacked on the thread stack and the core switches to Handler mode.
func (m *Mcu) enter(exc uint32, retPC uint32) uint32 {
	m.Nvic.ack(exc)
	xpsr := m.reg(XPSR)
	frame := [8]uint32{m.reg(R0), m.reg(R1), m.reg(R2), m.reg(R3), m.reg(R12), m.reg(LR), retPC, xpsr}
	var buf [HW_FRAME_SIZE]byte
	for i, v := range frame {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	base := m.reg(SP) - HW_FRAME_SIZE
	m.StackErr = false
	if err := m.WriteProt(uint64(base), buf[:], cpu.PROT_WRITE); err != nil {
		m.StackErr = true
		exc = EXC_HARDFAULT
	} else {
		m.setReg(SP, base)
	}
	m.setReg(PC, retPC)
	m.setReg(XPSR, xpsr&^PSR_IPSR|exc)
	m.handler = true
	m.OnIntr(exc)
	return exc
}

// ExceptionReturn unstacks the hardware frame at PSP and continues in unprivileged
// Thread mode on the process stack.
func (m *Mcu) ExceptionReturn() error {
	if !m.handler {
		return errors.New("exception return outside Handler mode")
	}
	psp := m.reg(PSP)
	buf, err := m.ReadProt(uint64(psp), HW_FRAME_SIZE, cpu.PROT_READ)
	if err != nil {
		return errors.Wrap(err, "unstacking exception frame")
	}
	for i, enum := range []int{R0, R1, R2, R3, R12, LR, PC, XPSR} {
		m.setReg(enum, binary.LittleEndian.Uint32(buf[i*4:]))
	}
	m.setReg(XPSR, m.reg(XPSR)&^PSR_IPSR)
	m.setReg(PSP, psp+HW_FRAME_SIZE)
	m.setReg(CONTROL, CONTROL_NPRIV|CONTROL_SPSEL)
	m.handler = false
	return nil
}

// SvcNumber reads the immediate of the svc instruction that ends just before retPC,
// the same way a Cortex-M handler inspects the stacked return address.
func (m *Mcu) SvcNumber(retPC uint32) (uint32, error) {
	mem, err := m.MemRead(uint64(retPC-INS_SIZE), INS_SIZE)
	if err != nil {
		return 0, errors.Wrap(err, "reading svc instruction")
	}
	i, err := decode(mem, uint64(retPC-INS_SIZE))
	if err != nil {
		return 0, err
	}
	if i.op != OP_SVC {
		return 0, errors.Errorf("no svc at %#x", retPC-INS_SIZE)
	}
	return i.imm, nil
}

// Run executes Thread mode code until an exception is taken and returns its number.
// The core is then in Handler mode with the hardware frame stacked on PSP.
func (m *Mcu) Run() (uint32, error) {
	if m.handler {
		return 0, errors.New("Run() called in Handler mode")
	}
	for {
		if atomic.SwapInt32(&m.stop, 0) != 0 {
			return 0, ErrStopped
		}
		if m.Budget > 0 && m.cycles >= m.Budget {
			return 0, ErrBudget
		}
		if m.reg(PRIMASK)&1 == 0 {
			if exc, ok := m.Nvic.next(); ok {
				return m.enter(exc, m.reg(PC)), nil
			}
		}
		exc, err := m.step()
		if err != nil || exc != 0 {
			return exc, err
		}
	}
}

func (m *Mcu) compare(a, b uint32) {
	psr := m.reg(XPSR) &^ (PSR_N | PSR_Z | PSR_C)
	if a == b {
		psr |= PSR_Z
	}
	if a >= b {
		psr |= PSR_C
	}
	if int32(a-b) < 0 {
		psr |= PSR_N
	}
	m.setReg(XPSR, psr)
}

func (m *Mcu) flag(f uint32) bool {
	return m.reg(XPSR)&f != 0
}

// executes one instruction, returning a nonzero exception number if one was taken
func (m *Mcu) step() (uint32, error) {
	pc := m.reg(PC)
	mem, err := m.ReadProt(uint64(pc), INS_SIZE, cpu.PROT_EXEC)
	if err != nil {
		return m.enter(EXC_MEMMANAGE, pc), nil
	}
	i, err := decode(mem, uint64(pc))
	if err != nil {
		return 0, err
	}
	m.OnCode(uint64(pc), INS_SIZE)
	m.tick(1)
	if i.ra > PC || i.rb > PC {
		return m.enter(EXC_USAGEFAULT, pc), nil
	}

	next := pc + INS_SIZE
	a, b, imm := i.ra, i.rb, i.imm
	// register writes that target pc are branches
	write := func(enum int, val uint32) {
		if enum == PC {
			next = val
		} else {
			m.setReg(enum, val)
		}
	}
	var memErr error
	switch i.op {
	case OP_NOP:
	case OP_MOV:
		write(a, m.reg(b))
	case OP_MOVI:
		write(a, imm)
	case OP_ADD:
		write(a, m.reg(a)+m.reg(b))
	case OP_ADDI:
		write(a, m.reg(a)+imm)
	case OP_SUB:
		write(a, m.reg(a)-m.reg(b))
	case OP_SUBI:
		write(a, m.reg(a)-imm)
	case OP_AND:
		write(a, m.reg(a)&m.reg(b))
	case OP_ORR:
		write(a, m.reg(a)|m.reg(b))
	case OP_MUL:
		write(a, m.reg(a)*m.reg(b))
	case OP_CMP:
		m.compare(m.reg(a), m.reg(b))
	case OP_CMPI:
		m.compare(m.reg(a), imm)

	case OP_LDR, OP_LDRB:
		size := 4
		if i.op == OP_LDRB {
			size = 1
		}
		var val uint64
		if val, memErr = m.ReadUint(uint64(m.reg(b)+imm), size, cpu.PROT_READ); memErr == nil {
			write(a, uint32(val))
		}
	case OP_STR, OP_STRB:
		size := 4
		if i.op == OP_STRB {
			size = 1
		}
		memErr = m.WriteUint(uint64(m.reg(b)+imm), size, cpu.PROT_WRITE, uint64(m.reg(a)))
	case OP_PUSH:
		sp := m.reg(SP) - 4
		if memErr = m.WriteUint(uint64(sp), 4, cpu.PROT_WRITE, uint64(m.reg(a))); memErr == nil {
			m.setReg(SP, sp)
		}
	case OP_POP:
		sp := m.reg(SP)
		var val uint64
		if val, memErr = m.ReadUint(uint64(sp), 4, cpu.PROT_READ); memErr == nil {
			m.setReg(SP, sp+4)
			write(a, uint32(val))
		}

	case OP_B:
		next = imm
	case OP_BEQ:
		if m.flag(PSR_Z) {
			next = imm
		}
	case OP_BNE:
		if !m.flag(PSR_Z) {
			next = imm
		}
	case OP_BLO:
		if !m.flag(PSR_C) {
			next = imm
		}
	case OP_BHS:
		if m.flag(PSR_C) {
			next = imm
		}
	case OP_BL:
		m.setReg(LR, next)
		next = imm
	case OP_BX:
		next = m.reg(a)

	case OP_SVC:
		return m.enter(EXC_SVCALL, next), nil
	case OP_WFI:
		if err := m.wfi(); err != nil {
			return 0, err
		}
	case OP_CPSIE, OP_CPSID:
		// ignored when unprivileged, as on hardware
		if m.Privileged() {
			m.setReg(PRIMASK, uint32(i.op-OP_CPSIE))
		}
	default:
		return m.enter(EXC_USAGEFAULT, pc), nil
	}
	if memErr != nil {
		return m.enter(EXC_MEMMANAGE, pc), nil
	}
	m.setReg(PC, next)
	return 0, nil
}

// wfi sleeps until an interrupt is pending. With SysTick running, time jumps straight
// to the next wrap instead of spinning; without it the core blocks until Wake.
func (m *Mcu) wfi() error {
	for {
		if _, ok := m.Nvic.next(); ok {
			return nil
		}
		if atomic.LoadInt32(&m.stop) != 0 {
			return nil
		}
		if m.SysTick.Enabled() {
			n := m.SysTick.Remaining()
			if m.Budget > 0 && m.cycles+n > m.Budget {
				if m.Budget > m.cycles {
					m.tick(m.Budget - m.cycles)
				}
				return nil
			}
			m.tick(n)
			continue
		}
		if m.Budget > 0 {
			return ErrWaitForever
		}
		<-m.wake
	}
}
