package cpu

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_FETCH_UNMAPPED:
		reason = "unmapped fetch"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	case MEM_FETCH_PROT:
		reason = "protected exec"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// Mem is a sparse, protection-checked address space.
// The Mem* methods are unchecked (privileged) accessors; ReadProt/WriteProt and
// the Uint helpers check protections and dispatch fault hooks, for interpreters.
type Mem struct {
	mask    uint64
	order   binary.ByteOrder
	regions Regions
	// set by NewHooks
	hooks *Hooks
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	return &Mem{
		mask:  ^uint64(0) >> (64 - bits),
		order: order,
	}
}

func (m *Mem) ByteOrder() binary.ByteOrder { return m.order }

func (m *Mem) Mappings() Regions { return m.regions }

func (m *Mem) MemMapProt(addr, size uint64, prot int, desc string) error {
	if size == 0 {
		return errors.New("zero-sized mapping")
	}
	end := addr + size - 1
	if end&m.mask != end || end < addr {
		return errors.Errorf("region %#x+%#x outside memory range", addr, size)
	}
	if len(m.regions.FindRange(addr, size)) > 0 {
		return errors.Errorf("region %#x+%#x overlaps an existing mapping", addr, size)
	}
	m.regions = append(m.regions, &Region{Addr: addr, Size: size, Prot: prot, Data: make([]byte, size), Desc: desc})
	sort.Sort(m.regions)
	return nil
}

// MemProt changes the protection of whole regions overlapping the range.
func (m *Mem) MemProt(addr, size uint64, prot int) error {
	found := m.regions.FindRange(addr, size)
	if len(found) == 0 {
		return errors.New("range not mapped")
	}
	for _, r := range found {
		r.Prot = prot
	}
	return nil
}

// walks addr:addr+len(p) across regions, checking mapping and protection
func (m *Mem) access(addr uint64, p []byte, prot int, write bool) error {
	for len(p) > 0 {
		r := m.regions.Find(addr)
		if r == nil {
			enum := MEM_READ_UNMAPPED
			if write {
				enum = MEM_WRITE_UNMAPPED
			} else if prot&PROT_EXEC != 0 {
				enum = MEM_FETCH_UNMAPPED
			}
			return &MemError{Addr: addr, Size: len(p), Enum: enum}
		}
		if prot != 0 && r.Prot&prot != prot {
			enum := MEM_READ_PROT
			if write {
				enum = MEM_WRITE_PROT
			} else if prot&PROT_EXEC != 0 {
				enum = MEM_FETCH_PROT
			}
			return &MemError{Addr: addr, Size: len(p), Enum: enum}
		}
		o := addr - r.Addr
		var n int
		if write {
			n = copy(r.Data[o:], p)
		} else {
			n = copy(p, r.Data[o:])
		}
		addr, p = addr+uint64(n), p[n:]
	}
	return nil
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.access(addr, p, 0, false)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.access(addr, p, 0, true)
}

// ReadStrAt reads a NUL-terminated string, giving up after max bytes.
func (m *Mem) ReadStrAt(addr uint64, max int) (string, error) {
	var out []byte
	var b [1]byte
	for i := 0; i < max; i++ {
		if err := m.MemReadInto(b[:], addr+uint64(i)); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
	}
	return "", errors.Errorf("unterminated string at %#x", addr)
}

func (m *Mem) fault(err error, addr uint64, size int, val int64) {
	if merr, ok := err.(*MemError); ok && m.hooks != nil {
		m.hooks.OnFault(merr.Enum, addr, size, val)
	}
}

// ReadProt reads while checking protections. This exists to support a CPU interpreter.
func (m *Mem) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	p := make([]byte, size)
	if err := m.access(addr, p, prot, false); err != nil {
		m.fault(err, addr, int(size), 0)
		return nil, err
	}
	return p, nil
}

func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	err := m.access(addr, p, prot, true)
	if err != nil {
		m.fault(err, addr, len(p), 0)
	}
	return err
}

func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, error) {
	if size > 8 {
		return 0, errors.Errorf("ReadUint size too large: %d > 8", size)
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, err
	}
	return UnpackUint(m.order, size, p)
}

func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) error {
	var buf [8]byte
	if size > 8 {
		return errors.Errorf("WriteUint size too large: %d > 8", size)
	}
	if _, err := PackUint(m.order, size, buf[:], val); err != nil {
		return err
	}
	return m.WriteProt(addr, buf[:size], prot)
}
