package cpu

// hook types, numbered like Unicorn's so traces stay familiar
const (
	// exception entry (SVC, IRQ, fault)
	HOOK_INTR = 1
	// each executed instruction
	HOOK_CODE = 4
	// memory access faults
	HOOK_MEM_ERR = 1008
)

// fault kinds carried by MemError and passed to HOOK_MEM_ERR callbacks
const (
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
	MEM_FETCH_UNMAPPED = 21
	MEM_WRITE_PROT     = 12
	MEM_READ_PROT      = 13
	MEM_FETCH_PROT     = 14
)

// memory protections
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = 7
)
