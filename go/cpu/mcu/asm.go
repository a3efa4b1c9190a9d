package mcu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

type fixup struct {
	off   int
	label string
}

// Asm builds a flat guest image at a fixed base address.
// Branch targets and address immediates may name labels defined later; they are
// resolved by Assemble. The first error sticks and is reported by Assemble.
type Asm struct {
	base   uint64
	buf    []byte
	labels map[string]uint64
	fixups []fixup
	err    error
}

func NewAsm(base uint64) *Asm {
	return &Asm{base: base, labels: make(map[string]uint64)}
}

// PC returns the address the next emitted byte will occupy.
func (a *Asm) PC() uint64 {
	return a.base + uint64(len(a.buf))
}

func (a *Asm) Label(name string) *Asm {
	if _, ok := a.labels[name]; ok && a.err == nil {
		a.err = errors.Errorf("duplicate label %q", name)
	}
	a.labels[name] = a.PC()
	return a
}

func (a *Asm) emit(op uint8, ra, rb int, imm uint32) *Asm {
	if _, ok := opData[op]; !ok && a.err == nil {
		a.err = errors.Errorf("unknown opcode %#x", op)
	}
	var b [INS_SIZE]byte
	b[0], b[1], b[2] = op, byte(ra), byte(rb)
	binary.LittleEndian.PutUint32(b[4:], imm)
	a.buf = append(a.buf, b[:]...)
	return a
}

// emitLabel emits an instruction whose immediate is the address of label
func (a *Asm) emitLabel(op uint8, ra int, label string) *Asm {
	a.fixups = append(a.fixups, fixup{off: len(a.buf) + 4, label: label})
	return a.emit(op, ra, 0, 0)
}

func (a *Asm) Nop() *Asm                    { return a.emit(OP_NOP, 0, 0, 0) }
func (a *Asm) Mov(rd, rs int) *Asm          { return a.emit(OP_MOV, rd, rs, 0) }
func (a *Asm) Movi(rd int, imm uint32) *Asm { return a.emit(OP_MOVI, rd, 0, imm) }
func (a *Asm) Adr(rd int, label string) *Asm {
	return a.emitLabel(OP_MOVI, rd, label)
}
func (a *Asm) Add(rd, rs int) *Asm          { return a.emit(OP_ADD, rd, rs, 0) }
func (a *Asm) Addi(rd int, imm uint32) *Asm { return a.emit(OP_ADDI, rd, 0, imm) }
func (a *Asm) Sub(rd, rs int) *Asm          { return a.emit(OP_SUB, rd, rs, 0) }
func (a *Asm) Subi(rd int, imm uint32) *Asm { return a.emit(OP_SUBI, rd, 0, imm) }
func (a *Asm) And(rd, rs int) *Asm          { return a.emit(OP_AND, rd, rs, 0) }
func (a *Asm) Orr(rd, rs int) *Asm          { return a.emit(OP_ORR, rd, rs, 0) }
func (a *Asm) Mul(rd, rs int) *Asm          { return a.emit(OP_MUL, rd, rs, 0) }
func (a *Asm) Cmp(ra, rb int) *Asm          { return a.emit(OP_CMP, ra, rb, 0) }
func (a *Asm) Cmpi(ra int, imm uint32) *Asm { return a.emit(OP_CMPI, ra, 0, imm) }

func (a *Asm) Ldr(rd, rb int, off uint32) *Asm  { return a.emit(OP_LDR, rd, rb, off) }
func (a *Asm) Str(rs, rb int, off uint32) *Asm  { return a.emit(OP_STR, rs, rb, off) }
func (a *Asm) Ldrb(rd, rb int, off uint32) *Asm { return a.emit(OP_LDRB, rd, rb, off) }
func (a *Asm) Strb(rs, rb int, off uint32) *Asm { return a.emit(OP_STRB, rs, rb, off) }
func (a *Asm) Push(r int) *Asm                  { return a.emit(OP_PUSH, r, 0, 0) }
func (a *Asm) Pop(r int) *Asm                   { return a.emit(OP_POP, r, 0, 0) }

func (a *Asm) B(label string) *Asm   { return a.emitLabel(OP_B, 0, label) }
func (a *Asm) Beq(label string) *Asm { return a.emitLabel(OP_BEQ, 0, label) }
func (a *Asm) Bne(label string) *Asm { return a.emitLabel(OP_BNE, 0, label) }
func (a *Asm) Blo(label string) *Asm { return a.emitLabel(OP_BLO, 0, label) }
func (a *Asm) Bhs(label string) *Asm { return a.emitLabel(OP_BHS, 0, label) }
func (a *Asm) Bl(label string) *Asm  { return a.emitLabel(OP_BL, 0, label) }
func (a *Asm) Bx(r int) *Asm         { return a.emit(OP_BX, r, 0, 0) }

func (a *Asm) Svc(num uint32) *Asm { return a.emit(OP_SVC, 0, 0, num) }
func (a *Asm) Wfi() *Asm           { return a.emit(OP_WFI, 0, 0, 0) }
func (a *Asm) Cpsie() *Asm         { return a.emit(OP_CPSIE, 0, 0, 0) }
func (a *Asm) Cpsid() *Asm         { return a.emit(OP_CPSID, 0, 0, 0) }
func (a *Asm) Udf(imm uint32) *Asm { return a.emit(OP_UDF, 0, 0, imm) }

// Bytes appends raw data.
func (a *Asm) Bytes(p []byte) *Asm {
	a.buf = append(a.buf, p...)
	return a
}

func (a *Asm) Word(v uint32) *Asm {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return a.Bytes(b[:])
}

// Asciz appends a NUL-terminated string.
func (a *Asm) Asciz(s string) *Asm {
	a.buf = append(a.buf, s...)
	a.buf = append(a.buf, 0)
	return a
}

// Align pads with zeroes up to a multiple of n.
func (a *Asm) Align(n int) *Asm {
	for len(a.buf)%n != 0 {
		a.buf = append(a.buf, 0)
	}
	return a
}

// Assemble resolves label references and returns the image and the symbol table.
func (a *Asm) Assemble() ([]byte, map[string]uint64, error) {
	if a.err != nil {
		return nil, nil, a.err
	}
	for _, f := range a.fixups {
		addr, ok := a.labels[f.label]
		if !ok {
			return nil, nil, errors.Errorf("undefined label %q", f.label)
		}
		binary.LittleEndian.PutUint32(a.buf[f.off:], uint32(addr))
	}
	out := make([]byte, len(a.buf))
	copy(out, a.buf)
	syms := make(map[string]uint64, len(a.labels))
	for k, v := range a.labels {
		syms[k] = v
	}
	return out, syms, nil
}
