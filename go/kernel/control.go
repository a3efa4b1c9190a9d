package kernel

import (
	"github.com/lunixbochs/evcorn/go/models"
)

// ControlBlock is the per-event record. SP is only meaningful while
// started is set: it then points at a complete saved frame.
type ControlBlock struct {
	ID      EventID
	Handler Ptr
	SP      uint32

	started bool
	next    *ControlBlock
	queued  bool
}

func (cb *ControlBlock) Started() bool { return cb.started }
func (cb *ControlBlock) Queued() bool  { return cb.queued }
func (cb *ControlBlock) Bound() bool   { return cb.Handler != 0 }

// Outranks reports whether cb should run ahead of o.
func (cb *ControlBlock) Outranks(o *ControlBlock) bool {
	if cb.ID == IdleEvent {
		return false
	}
	if o.ID == IdleEvent {
		return true
	}
	return cb.ID < o.ID
}

func (cb *ControlBlock) String() string {
	return cb.ID.String()
}

// Args returns the syscall arguments staged in the saved frame.
func (cb *ControlBlock) Args(mem Memory) ([]uint64, error) {
	f, err := models.ReadFrame(mem, cb.SP)
	if err != nil {
		return nil, err
	}
	return f.Args(), nil
}

// SetReturn stages a syscall result in the saved frame's r0.
func (cb *ControlBlock) SetReturn(mem Memory, val uint32) error {
	s := models.StrucAt(mem, uint64(cb.SP)+models.SoftFrameSize)
	return s.Pack(&val)
}
