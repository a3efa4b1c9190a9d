package cpu

type Hook interface{}

// Cpu is the minimum an emulated core exposes to the board and the kernel's platform layer.
// Execution control is core-specific (exception entry/return), so it lives on the concrete type.
type Cpu interface {
	// memory mapping
	MemMapProt(addr, size uint64, prot int, desc string) error
	MemProt(addr, size uint64, prot int) error

	// unchecked memory IO, used by privileged code
	MemRead(addr, size uint64) ([]byte, error)
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error

	// register IO
	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error

	// hooks
	HookAdd(htype int, cb interface{}, begin, end uint64) (Hook, error)
	HookDel(hook Hook) error

	Close() error
}
