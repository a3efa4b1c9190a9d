package cpu

import (
	"fmt"
	"sort"
	"strings"
)

// Region is one contiguous mapping in the emulated address space.
type Region struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte
	Desc string
}

func (r *Region) String() string {
	prot := []byte("---")
	for i, p := range []int{PROT_READ, PROT_WRITE, PROT_EXEC} {
		if r.Prot&p != 0 {
			prot[i] = "rwx"[i]
		}
	}
	desc := fmt.Sprintf("%#08x-%#08x %s", r.Addr, r.Addr+r.Size, prot)
	if r.Desc != "" {
		desc += fmt.Sprintf(" [%s]", r.Desc)
	}
	return desc
}

func (r *Region) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.Addr+r.Size
}

func (r *Region) Overlaps(addr, size uint64) bool {
	return addr < r.Addr+r.Size && r.Addr < addr+size
}

// Regions is kept sorted by address and never overlaps.
type Regions []*Region

func (p Regions) Len() int           { return len(p) }
func (p Regions) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Regions) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Regions) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// index of the region containing addr, or -1
func (p Regions) bsearch(addr uint64) int {
	i := sort.Search(len(p), func(i int) bool { return p[i].Addr+p[i].Size > addr })
	if i < len(p) && p[i].Contains(addr) {
		return i
	}
	return -1
}

func (p Regions) Find(addr uint64) *Region {
	if i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}

// FindRange returns every region overlapping addr:addr+size.
func (p Regions) FindRange(addr, size uint64) []*Region {
	var ret []*Region
	for _, r := range p {
		if r.Overlaps(addr, size) {
			ret = append(ret, r)
		}
	}
	return ret
}
