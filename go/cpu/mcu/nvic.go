package mcu

import (
	"sync"
)

const maxIrq = 32

// Nvic tracks pending exceptions for the core.
// External lines are either edge-latched (SetPending) or level-sensitive, where a
// device reports its interrupt flag through an attached callback. Level callbacks may
// be backed by state another goroutine writes (a host feeding the UART), so every
// access to the latched state goes through mu.
type Nvic struct {
	mu      sync.Mutex
	enabled uint32
	pending uint32
	systick bool
	levels  [maxIrq]func() bool
}

func (n *Nvic) Enable(irq int) {
	n.mu.Lock()
	n.enabled |= 1 << uint(irq)
	n.mu.Unlock()
}

func (n *Nvic) Disable(irq int) {
	n.mu.Lock()
	n.enabled &^= 1 << uint(irq)
	n.mu.Unlock()
}

func (n *Nvic) SetPending(irq int) {
	n.mu.Lock()
	n.pending |= 1 << uint(irq)
	n.mu.Unlock()
}

// Attach makes irq level-sensitive: it is pending whenever level() reports true.
func (n *Nvic) Attach(irq int, level func() bool) {
	n.mu.Lock()
	n.levels[irq] = level
	n.mu.Unlock()
}

func (n *Nvic) pendSysTick() {
	n.mu.Lock()
	n.systick = true
	n.mu.Unlock()
}

// next returns the highest priority pending exception. Lower exception numbers win,
// so SysTick beats every external line.
func (n *Nvic) next() (uint32, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.systick {
		return EXC_SYSTICK, true
	}
	for irq := 0; irq < maxIrq; irq++ {
		bit := uint32(1) << uint(irq)
		if n.enabled&bit == 0 {
			continue
		}
		if n.pending&bit != 0 || n.levels[irq] != nil && n.levels[irq]() {
			return EXC_IRQ0 + uint32(irq), true
		}
	}
	return 0, false
}

// ack clears the latched state for an exception being entered.
// Level-sensitive lines stay asserted until the device flag is cleared.
func (n *Nvic) ack(exc uint32) {
	n.mu.Lock()
	if exc == EXC_SYSTICK {
		n.systick = false
	} else if exc >= EXC_IRQ0 {
		n.pending &^= 1 << (exc - EXC_IRQ0)
	}
	n.mu.Unlock()
}
