package kernel

import (
	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"
)

// MaxString bounds strings read from guest memory.
const MaxString = 256

func (k *Kernel) argCodec(arg interface{}, vals []interface{}) error {
	if reg, ok := vals[0].(uint64); ok {
		switch v := arg.(type) {
		case *EventID:
			if reg > 0xff {
				reg = 0xff
			}
			*v = EventID(reg)
		case *SensorID:
			*v = SensorID(reg)
		case *Ptr:
			*v = Ptr(reg)
		case *Len:
			*v = Len(reg)
		case *uint32:
			*v = uint32(reg)
		case *string:
			s, err := k.readStr(uint32(reg))
			if err != nil {
				return err
			}
			*v = s
		default:
			return argjoy.NoMatch
		}
		return nil
	}
	return argjoy.NoMatch
}

// readStr reads a NUL-terminated guest string.
func (k *Kernel) readStr(addr uint32) (string, error) {
	var out []byte
	var b [1]byte
	for i := 0; i < MaxString; i++ {
		if err := k.platform.MemReadInto(b[:], uint64(addr)+uint64(i)); err != nil {
			return "", errors.Wrapf(err, "string at %#x", addr)
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
	}
	return "", errors.Errorf("string at %#x longer than %d bytes", addr, MaxString)
}
