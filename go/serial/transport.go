package serial

import (
	"bytes"

	"github.com/pkg/errors"
)

var ErrEmpty = errors.New("receive buffer empty")

// Transport moves raw bytes over a serial line. Receive never blocks:
// it returns ErrEmpty when nothing has arrived.
type Transport interface {
	Send(p []byte) (int, error)
	Receive(p []byte) (int, error)
}

func Send(t Transport, m *Message) error {
	p := m.Bytes()
	n, err := t.Send(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return errors.Errorf("short send: %d/%d", n, len(p))
	}
	return nil
}

// Receive reads exactly one message frame.
func Receive(t Transport) (*Message, error) {
	buf := make([]byte, MessageSize)
	got := 0
	for got < len(buf) {
		n, err := t.Receive(buf[got:])
		if err == ErrEmpty && got > 0 {
			return nil, errors.Errorf("truncated message (%d/%d bytes)", got, len(buf))
		} else if err != nil {
			return nil, err
		}
		got += n
	}
	return Unpack(bytes.NewReader(buf))
}
