package kernel

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/models"
)

var (
	ErrStackDepth    = errors.New("shared stack nest too deep")
	ErrStackOverflow = errors.New("shared stack overflow")
	ErrStackOrder    = errors.New("shared stack unwound out of order")
)

// Section is the part of the shared stack owned by one started event:
// its saved frame plus whatever it pushed before being suspended.
type Section struct {
	Owner *ControlBlock
	Lo    uint32
	Hi    uint32
}

func (s Section) String() string {
	return fmt.Sprintf("%#08x-%#08x %s", s.Lo, s.Hi, s.Owner)
}

// Stack tracks the nest of sections on the shared stack region
// [Base, Base+Size). Sections grow downward and unwind strictly LIFO.
type Stack struct {
	Base, Size uint32
	MaxDepth   int

	mem  Memory
	nest []Section
	low  uint32
}

func NewStack(mem Memory, base, size uint32, depth int) (*Stack, error) {
	if size < models.FrameSize {
		return nil, errors.Errorf("shared stack too small: %#x bytes", size)
	}
	if depth <= 0 {
		depth = Capacity
	}
	return &Stack{
		Base:     base,
		Size:     size,
		MaxDepth: depth,
		mem:      mem,
		low:      base + size,
	}, nil
}

func (s *Stack) end() uint32 { return s.Base + s.Size }

// Top is the address new sections are placed under.
func (s *Stack) Top() uint32 {
	if len(s.nest) == 0 {
		return s.end()
	}
	return s.nest[len(s.nest)-1].Lo
}

// Innermost returns the owner of the lowest section, or nil.
func (s *Stack) Innermost() *ControlBlock {
	if len(s.nest) == 0 {
		return nil
	}
	return s.nest[len(s.nest)-1].Owner
}

func (s *Stack) Depth() int { return len(s.nest) }

// LowWater is the lowest saved stack pointer seen so far.
func (s *Stack) LowWater() uint32 { return s.low }

func (s *Stack) Sections() []Section {
	out := make([]Section, len(s.nest))
	copy(out, s.nest)
	return out
}

func (s *Stack) mark(sp uint32) {
	if sp < s.low {
		s.low = sp
	}
}

// Push opens a section of size bytes for owner under the current top.
func (s *Stack) Push(owner *ControlBlock, size uint32) (uint32, error) {
	if len(s.nest) >= s.MaxDepth {
		return 0, errors.Wrapf(ErrStackDepth, "%s at depth %d", owner, len(s.nest))
	}
	top := s.Top()
	if top-s.Base < size {
		return 0, errors.Wrapf(ErrStackOverflow, "%s needs %d bytes below %#x", owner, size, top)
	}
	sp := top - size
	s.nest = append(s.nest, Section{Owner: owner, Lo: sp, Hi: top})
	s.mark(sp)
	return sp, nil
}

func (s *Stack) innermost(owner *ControlBlock) (*Section, error) {
	if len(s.nest) == 0 {
		return nil, errors.Wrapf(ErrStackOrder, "%s has no section", owner)
	}
	sec := &s.nest[len(s.nest)-1]
	if sec.Owner != owner {
		return nil, errors.Wrapf(ErrStackOrder, "%s is not innermost (%s is)", owner, sec.Owner)
	}
	return sec, nil
}

// Save records where owner's saved frame landed after a trap.
func (s *Stack) Save(owner *ControlBlock, sp uint32) error {
	sec, err := s.innermost(owner)
	if err != nil {
		return err
	}
	if sp < s.Base || sp > sec.Hi-models.FrameSize {
		return errors.Wrapf(ErrStackOverflow, "%s saved frame at %#x outside %#x-%#x", owner, sp, s.Base, sec.Hi)
	}
	sec.Lo = sp
	s.mark(sp)
	return nil
}

// Resume checks that owner may run: it must own the innermost section.
func (s *Stack) Resume(owner *ControlBlock) error {
	_, err := s.innermost(owner)
	return err
}

// Pop releases owner's section. Owner must be innermost.
func (s *Stack) Pop(owner *ControlBlock) error {
	if _, err := s.innermost(owner); err != nil {
		return err
	}
	s.nest = s.nest[:len(s.nest)-1]
	return nil
}

func (s *Stack) ReadFrame(sp uint32) (*models.Frame, error) {
	return models.ReadFrame(s.mem, sp)
}

func (s *Stack) WriteFrame(sp uint32, f *models.Frame) error {
	return models.WriteFrame(s.mem, sp, f)
}
