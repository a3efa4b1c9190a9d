package mcu

import "strconv"

// register enums
const (
	R0 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	// SP aliases MSP in Handler mode or when CONTROL.SPSEL is clear, PSP otherwise
	SP
	LR
	PC
	XPSR

	MSP
	PSP
	PRIMASK
	CONTROL
)

var regNames = []string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
	"xpsr", "msp", "psp", "primask", "control",
}

func RegName(enum int) string {
	if enum >= 0 && enum < len(regNames) {
		return regNames[enum]
	}
	return "r?"
}

// xPSR fields
const (
	PSR_N    = 1 << 31
	PSR_Z    = 1 << 30
	PSR_C    = 1 << 29
	PSR_T    = 1 << 24
	PSR_IPSR = 0x1ff
)

// CONTROL bits
const (
	CONTROL_NPRIV = 1
	CONTROL_SPSEL = 2
)

// exception numbers, as reported in IPSR
const (
	EXC_HARDFAULT  = 3
	EXC_MEMMANAGE  = 4
	EXC_USAGEFAULT = 6
	EXC_SVCALL     = 11
	EXC_SYSTICK    = 15
	EXC_IRQ0       = 16
)

func ExcName(exc uint32) string {
	switch exc {
	case EXC_HARDFAULT:
		return "HardFault"
	case EXC_MEMMANAGE:
		return "MemManage"
	case EXC_USAGEFAULT:
		return "UsageFault"
	case EXC_SVCALL:
		return "SVCall"
	case EXC_SYSTICK:
		return "SysTick"
	}
	if exc >= EXC_IRQ0 {
		return "IRQ" + strconv.Itoa(int(exc-EXC_IRQ0))
	}
	return "exc" + strconv.Itoa(int(exc))
}

// INS_SIZE is the fixed instruction width: op, ra, rb, reserved, imm32 (little endian)
const INS_SIZE = 8

// hardware-stacked exception frame: r0, r1, r2, r3, r12, lr, pc, xpsr
const HW_FRAME_SIZE = 32

const (
	OP_NOP  = 0x00
	OP_MOV  = 0x01
	OP_MOVI = 0x02
	OP_ADD  = 0x03
	OP_ADDI = 0x04
	OP_SUB  = 0x05
	OP_SUBI = 0x06
	OP_AND  = 0x07
	OP_ORR  = 0x08
	OP_MUL  = 0x09
	OP_CMP  = 0x0a
	OP_CMPI = 0x0b

	OP_LDR  = 0x10
	OP_STR  = 0x11
	OP_LDRB = 0x12
	OP_STRB = 0x13
	OP_PUSH = 0x14
	OP_POP  = 0x15

	OP_B   = 0x20
	OP_BEQ = 0x21
	OP_BNE = 0x22
	OP_BLO = 0x23
	OP_BHS = 0x24
	OP_BL  = 0x25
	OP_BX  = 0x26

	OP_SVC   = 0x30
	OP_WFI   = 0x31
	OP_CPSIE = 0x32
	OP_CPSID = 0x33

	OP_UDF = 0xff
)

// operand forms
const (
	F_NONE = iota
	F_R    // ra
	F_RR   // ra, rb
	F_RI   // ra, #imm
	F_I    // #imm / target
	F_RM   // ra, [rb, #imm]
)

type op struct {
	name string
	form int
}

var opData = map[uint8]op{
	OP_NOP:  {"nop", F_NONE},
	OP_MOV:  {"mov", F_RR},
	OP_MOVI: {"movi", F_RI},
	OP_ADD:  {"add", F_RR},
	OP_ADDI: {"addi", F_RI},
	OP_SUB:  {"sub", F_RR},
	OP_SUBI: {"subi", F_RI},
	OP_AND:  {"and", F_RR},
	OP_ORR:  {"orr", F_RR},
	OP_MUL:  {"mul", F_RR},
	OP_CMP:  {"cmp", F_RR},
	OP_CMPI: {"cmpi", F_RI},

	OP_LDR:  {"ldr", F_RM},
	OP_STR:  {"str", F_RM},
	OP_LDRB: {"ldrb", F_RM},
	OP_STRB: {"strb", F_RM},
	OP_PUSH: {"push", F_R},
	OP_POP:  {"pop", F_R},

	OP_B:   {"b", F_I},
	OP_BEQ: {"beq", F_I},
	OP_BNE: {"bne", F_I},
	OP_BLO: {"blo", F_I},
	OP_BHS: {"bhs", F_I},
	OP_BL:  {"bl", F_I},
	OP_BX:  {"bx", F_R},

	OP_SVC:   {"svc", F_I},
	OP_WFI:   {"wfi", F_NONE},
	OP_CPSIE: {"cpsie", F_NONE},
	OP_CPSID: {"cpsid", F_NONE},

	OP_UDF: {"udf", F_I},
}
