package models

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

type StrucStream struct {
	Stream io.ReadWriter
	Order  binary.ByteOrder
}

func (s *StrucStream) Pack(i interface{}) error {
	return struc.PackWithOrder(s.Stream, i, s.Order)
}

func (s *StrucStream) Unpack(i interface{}) error {
	return struc.UnpackWithOrder(s.Stream, i, s.Order)
}

// StrucAt returns a little-endian struc stream over guest memory at addr.
func StrucAt(mem Memory, addr uint64) *StrucStream {
	return &StrucStream{NewMemStream(mem, addr), binary.LittleEndian}
}
