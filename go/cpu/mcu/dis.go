package mcu

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type ins struct {
	addr  uint64
	bytes []byte
	op    uint8
	ra    int
	rb    int
	imm   uint32
}

// decode one instruction; unknown opcodes decode as udf so the core can fault on them
func decode(mem []byte, addr uint64) (*ins, error) {
	if len(mem) < INS_SIZE {
		return nil, errors.Errorf("short instruction at %#x", addr)
	}
	i := &ins{
		addr:  addr,
		bytes: mem[:INS_SIZE],
		op:    mem[0],
		ra:    int(mem[1]),
		rb:    int(mem[2]),
		imm:   binary.LittleEndian.Uint32(mem[4:8]),
	}
	if _, ok := opData[i.op]; !ok {
		i.op = OP_UDF
	}
	return i, nil
}

func (i *ins) Addr() uint64  { return i.addr }
func (i *ins) Bytes() []byte { return i.bytes }

func (i *ins) Mnemonic() string {
	return opData[i.op].name
}

func (i *ins) OpStr() string {
	switch opData[i.op].form {
	case F_R:
		return RegName(i.ra)
	case F_RR:
		return fmt.Sprintf("%s, %s", RegName(i.ra), RegName(i.rb))
	case F_RI:
		return fmt.Sprintf("%s, #%#x", RegName(i.ra), i.imm)
	case F_I:
		return fmt.Sprintf("#%#x", i.imm)
	case F_RM:
		if i.imm == 0 {
			return fmt.Sprintf("%s, [%s]", RegName(i.ra), RegName(i.rb))
		}
		return fmt.Sprintf("%s, [%s, #%#x]", RegName(i.ra), RegName(i.rb), i.imm)
	}
	return ""
}

func (i *ins) String() string {
	if s := i.OpStr(); s != "" {
		return i.Mnemonic() + " " + s
	}
	return i.Mnemonic()
}

type Dis struct{}

// Dis disassembles mem as a listing starting at addr, one instruction per line.
func (d *Dis) Dis(mem []byte, addr uint64, showBytes bool) (string, error) {
	var out []string
	for len(mem) >= INS_SIZE {
		i, err := decode(mem, addr)
		if err != nil {
			return "", err
		}
		line := fmt.Sprintf("%#08x: ", addr)
		if showBytes {
			line += fmt.Sprintf("%x ", i.bytes)
		}
		out = append(out, line+i.String())
		mem, addr = mem[INS_SIZE:], addr+INS_SIZE
	}
	return strings.Join(out, "\n"), nil
}
