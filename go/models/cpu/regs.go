package cpu

import (
	"github.com/pkg/errors"
)

// Regs is a flat register file indexed by enum.
// Enums are expected to be small and dense (an MCU has a couple dozen registers),
// so values live in a slice with a validity mask instead of a map.
type Regs struct {
	mask  uint64
	vals  []uint64
	valid []bool
}

func NewRegs(bits uint, enums []int) *Regs {
	max := 0
	for _, e := range enums {
		if e < 0 {
			panic("negative register enum")
		}
		if e > max {
			max = e
		}
	}
	r := &Regs{
		mask:  ^uint64(0) >> (64 - bits),
		vals:  make([]uint64, max+1),
		valid: make([]bool, max+1),
	}
	for _, e := range enums {
		r.valid[e] = true
	}
	return r
}

func (r *Regs) ok(enum int) bool {
	return enum >= 0 && enum < len(r.valid) && r.valid[enum]
}

func (r *Regs) RegRead(enum int) (uint64, error) {
	if !r.ok(enum) {
		return 0, errors.Errorf("invalid register: %d", enum)
	}
	return r.vals[enum], nil
}

func (r *Regs) RegWrite(enum int, val uint64) error {
	if !r.ok(enum) {
		return errors.Errorf("invalid register: %d", enum)
	}
	r.vals[enum] = val & r.mask
	return nil
}

// ContextSave copies every register value, reusing a previous context if provided.
func (r *Regs) ContextSave(reuse []uint64) []uint64 {
	if cap(reuse) < len(r.vals) {
		reuse = make([]uint64, len(r.vals))
	}
	reuse = reuse[:len(r.vals)]
	copy(reuse, r.vals)
	return reuse
}

func (r *Regs) ContextRestore(ctx []uint64) error {
	if len(ctx) != len(r.vals) {
		return errors.New("incorrect context size")
	}
	copy(r.vals, ctx)
	return nil
}
