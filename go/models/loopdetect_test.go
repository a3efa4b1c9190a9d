package models

import (
	"testing"
)

func feed(l *LoopDetect, addrs ...uint64) (elided int, body []uint64, count int) {
	for _, a := range addrs {
		e, b, c := l.Update(a)
		if e {
			elided++
		}
		if b != nil {
			body, count = b, c
		}
	}
	return
}

func TestLoopDetect(t *testing.T) {
	for n := 1; n <= 6; n++ {
		l := NewLoopDetect(8)
		var seq []uint64
		for i := 0; i < n; i++ {
			seq = append(seq, uint64(0x100+i*8))
		}
		// two passes to detect, three more to elide
		if elided, _, _ := feed(l, append(seq, seq...)...); elided != 0 {
			t.Fatalf("n=%d: detection triggered early", n)
		}
		for i := 0; i < 3; i++ {
			if elided, _, _ := feed(l, seq...); elided != n {
				t.Fatalf("n=%d: elided %d of %d", n, elided, n)
			}
		}
		elided, body, count := feed(l, 0x999)
		if elided != 0 || len(body) != n || count != 3 {
			t.Fatalf("n=%d: exit reported body %v count %d", n, body, count)
		}
	}
}

func TestLoopDetectNoLoop(t *testing.T) {
	l := NewLoopDetect(4)
	for i := uint64(0); i < 100; i++ {
		if elide, _, _ := l.Update(i); elide {
			t.Fatalf("elided non-repeating address %d", i)
		}
	}
}

func TestLoopDetectTooLong(t *testing.T) {
	l := NewLoopDetect(2)
	seq := []uint64{1, 2, 3}
	for i := 0; i < 4; i++ {
		if elided, _, _ := feed(l, seq...); elided != 0 {
			t.Fatal("detected a loop longer than the limit")
		}
	}
}
