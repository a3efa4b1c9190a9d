package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// PackUint writes the low size bytes of n into buf (allocating when buf is nil).
func PackUint(order binary.ByteOrder, size int, buf []byte, n uint64) ([]byte, error) {
	if buf == nil {
		buf = make([]byte, size)
	}
	if len(buf) < size {
		return nil, errors.Errorf("buffer too small (%d < %d)", len(buf), size)
	}
	switch size {
	case 1:
		buf[0] = byte(n)
	case 2:
		order.PutUint16(buf, uint16(n))
	case 4:
		order.PutUint32(buf, uint32(n))
	case 8:
		order.PutUint64(buf, n)
	default:
		return nil, errors.Errorf("unsupported uint size: %d", size)
	}
	return buf[:size], nil
}

func UnpackUint(order binary.ByteOrder, size int, buf []byte) (uint64, error) {
	if len(buf) < size {
		return 0, errors.Errorf("buffer too small (%d < %d)", len(buf), size)
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(order.Uint16(buf)), nil
	case 4:
		return uint64(order.Uint32(buf)), nil
	case 8:
		return order.Uint64(buf), nil
	}
	return 0, errors.Errorf("unsupported uint size: %d", size)
}
