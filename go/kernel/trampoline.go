package kernel

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/models"
)

// buildTrampoline lays out a first frame for target directly below the
// section of prev, the event it nests on (nil for an empty stack).
// Resuming the frame enters the handler with r0 holding the previous
// stack top and lr pointing at the exit stub.
func (k *Kernel) buildTrampoline(prev, target *ControlBlock) error {
	if inner := k.stack.Innermost(); inner != prev {
		return errors.Wrapf(ErrStackOrder, "trampoline for %s nests on %v, innermost is %v", target, prev, inner)
	}
	top := k.stack.Top()
	sp, err := k.stack.Push(target, models.FrameSize)
	if err != nil {
		return err
	}
	f := &models.Frame{
		R0:   top,
		LR:   k.platform.ExitStub(),
		PC:   uint32(target.Handler),
		XPSR: k.platform.ThreadPSR(),
	}
	if err := k.stack.WriteFrame(sp, f); err != nil {
		k.stack.Pop(target)
		return errors.Wrapf(ErrStackOverflow, "trampoline for %s: %v", target, err)
	}
	target.SP = sp
	target.started = true
	return nil
}
