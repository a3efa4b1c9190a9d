package mcu

// SysTick is the core timer. It counts executed cycles down from Reload and pends
// the SysTick exception each time it wraps; wraps between two checks coalesce.
type SysTick struct {
	Reload  uint64
	enabled bool
	count   uint64
}

func (s *SysTick) Enable(reload uint64) {
	s.Reload = reload
	s.count = reload
	s.enabled = reload > 0
}

func (s *SysTick) Disable() {
	s.enabled = false
}

func (s *SysTick) Enabled() bool {
	return s.enabled
}

// Remaining returns the cycles left until the next wrap.
func (s *SysTick) Remaining() uint64 {
	return s.count
}

// advance counts n cycles and reports whether the timer wrapped.
func (s *SysTick) advance(n uint64) bool {
	if !s.enabled {
		return false
	}
	if n < s.count {
		s.count -= n
		return false
	}
	n -= s.count
	s.count = s.Reload - n%s.Reload
	return true
}
