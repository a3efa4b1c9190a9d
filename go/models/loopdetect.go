package models

// LoopDetect folds repeating address sequences out of an execution trace.
type LoopDetect struct {
	max     int
	history []uint64

	loop  []uint64
	pos   int
	count int
}

// NewLoopDetect finds loops with bodies of up to max addresses.
func NewLoopDetect(max int) *LoopDetect {
	return &LoopDetect{max: max, history: make([]uint64, 0, max*2)}
}

func equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

// Update records addr. It returns true when addr continues a loop that has
// already been seen twice in a row and can be elided. When a loop is left,
// body and count report the loop and the number of elided iterations.
func (l *LoopDetect) Update(addr uint64) (elide bool, body []uint64, count int) {
	if l.loop != nil {
		if l.loop[l.pos] == addr {
			l.pos = (l.pos + 1) % len(l.loop)
			if l.pos == 0 {
				l.count++
			}
			return true, nil, 0
		}
		body, count = l.loop, l.count
		l.loop, l.pos, l.count = nil, 0, 0
		l.history = l.history[:0]
	}
	if len(l.history) == cap(l.history) {
		copy(l.history, l.history[1:])
		l.history = l.history[:len(l.history)-1]
	}
	l.history = append(l.history, addr)
	h := l.history
	for n := 1; n <= l.max && n*2 <= len(h); n++ {
		if equal(h[len(h)-n:], h[len(h)-n*2:len(h)-n]) {
			l.loop = append([]uint64(nil), h[len(h)-n:]...)
			break
		}
	}
	return false, body, count
}
