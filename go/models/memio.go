package models

// Memory is the slice of a guest address space that the kernel and the
// board read and write through.
type Memory interface {
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

type MemReader struct {
	Mem  Memory
	Addr uint64
}

func (m *MemReader) Read(p []byte) (int, error) {
	err := m.Mem.MemReadInto(p, m.Addr)
	if err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}

type MemWriter struct {
	Mem  Memory
	Addr uint64
}

func (m *MemWriter) Write(p []byte) (int, error) {
	err := m.Mem.MemWrite(m.Addr, p)
	if err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}

// MemStream reads and writes sequentially from Addr.
type MemStream struct {
	MemReader
	MemWriter
}

func NewMemStream(mem Memory, addr uint64) *MemStream {
	return &MemStream{MemReader{mem, addr}, MemWriter{mem, addr}}
}
