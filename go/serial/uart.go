package serial

import (
	"io"
	"sync"
)

// Uart is a serial port with an RX interrupt. The line is level
// triggered: it stays asserted while the FIFO holds at least the watermark
// and the interrupt is enabled, until the service routine clears it.
type Uart struct {
	mu        sync.Mutex
	rx        []byte
	tx        io.Writer
	rxie      bool
	flag      bool
	watermark int
	notify    func()
}

// NewUart sends transmitted bytes to tx. notify is called (outside any
// lock) whenever the interrupt line may have become asserted. The receive
// watermark starts at one message frame.
func NewUart(tx io.Writer, notify func()) *Uart {
	return &Uart{tx: tx, notify: notify, watermark: MessageSize}
}

// SetRxWatermark sets how many received bytes raise the interrupt.
func (u *Uart) SetRxWatermark(n int) {
	if n < 1 {
		n = 1
	}
	u.mu.Lock()
	u.watermark = n
	u.flag = len(u.rx) >= n
	raise := u.rxie && u.flag
	u.mu.Unlock()
	if raise && u.notify != nil {
		u.notify()
	}
}

func (u *Uart) EnableRxInterrupt(on bool) {
	u.mu.Lock()
	u.rxie = on
	raise := on && u.flag
	u.mu.Unlock()
	if raise && u.notify != nil {
		u.notify()
	}
}

// Pending reports the level of the interrupt line.
func (u *Uart) Pending() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rxie && u.flag
}

// ClearInterrupt acknowledges the receive interrupt. A FIFO still at the
// watermark latches the flag again.
func (u *Uart) ClearInterrupt() {
	u.mu.Lock()
	u.flag = len(u.rx) >= u.watermark
	u.mu.Unlock()
}

// Inject delivers bytes from the far end of the line.
func (u *Uart) Inject(p []byte) {
	if len(p) == 0 {
		return
	}
	u.mu.Lock()
	u.rx = append(u.rx, p...)
	if len(u.rx) >= u.watermark {
		u.flag = true
	}
	raise := u.rxie && u.flag
	u.mu.Unlock()
	if raise && u.notify != nil {
		u.notify()
	}
}

func (u *Uart) InjectMessage(m *Message) {
	u.Inject(m.Bytes())
}

func (u *Uart) Send(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tx == nil {
		return len(p), nil
	}
	return u.tx.Write(p)
}

func (u *Uart) Receive(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.rx) == 0 {
		return 0, ErrEmpty
	}
	n := copy(p, u.rx)
	u.rx = u.rx[n:]
	return n, nil
}

// Buffered returns the number of received bytes not yet read.
func (u *Uart) Buffered() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx)
}
