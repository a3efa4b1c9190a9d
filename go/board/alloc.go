package board

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/models/cpu"
)

const PAGE_SIZE = 0x100

func align(addr, size uint64) (uint64, uint64) {
	right := addr + size
	addr &^= PAGE_SIZE - 1
	right = (right + PAGE_SIZE - 1) &^ (PAGE_SIZE - 1)
	return addr, right - addr
}

// Allocator hands out RAM regions from [Base, Base+Size), keeping an
// unmapped guard gap below each one so a downward overrun faults.
type Allocator struct {
	Base, Size uint64
	Guard      uint64

	mem *cpu.Mem
}

func NewAllocator(mem *cpu.Mem, base, size uint64) *Allocator {
	return &Allocator{Base: base, Size: size, Guard: PAGE_SIZE, mem: mem}
}

// Reserve finds the lowest free range of size bytes with its guard gap.
func (a *Allocator) Reserve(size uint64) (uint64, uint64, error) {
	_, size = align(0, size)
	if size == 0 {
		return 0, 0, errors.New("zero-size reserve")
	}
	end := a.Base + a.Size
	for addr := a.Base + a.Guard; addr+size <= end; addr += PAGE_SIZE {
		if len(a.mem.Mappings().FindRange(addr-a.Guard, size+a.Guard)) == 0 {
			return addr, size, nil
		}
	}
	return 0, 0, errors.Errorf("failed to reserve %#x bytes", size)
}

func (a *Allocator) Malloc(size uint64, desc string) (uint64, error) {
	addr, size, err := a.Reserve(size)
	if err != nil {
		return 0, err
	}
	if err := a.mem.MemMapProt(addr, size, cpu.PROT_READ|cpu.PROT_WRITE, desc); err != nil {
		return 0, errors.Wrap(err, "a.Malloc() failed")
	}
	return addr, nil
}
