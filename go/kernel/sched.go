package kernel

// Scheduler keeps the ready queue: a singly linked list through the
// control blocks, highest priority first. The idle event is never queued
// and is picked only when the queue is empty.
type Scheduler struct {
	idle *ControlBlock
	head *ControlBlock
}

func NewScheduler(idle *ControlBlock) *Scheduler {
	return &Scheduler{idle: idle}
}

func (s *Scheduler) enqueue(cb *ControlBlock) {
	if cb == s.idle || cb.queued {
		return
	}
	link := &s.head
	for *link != nil && !cb.Outranks(*link) {
		link = &(*link).next
	}
	cb.next = *link
	*link = cb
	cb.queued = true
}

func (s *Scheduler) dequeue() *ControlBlock {
	cb := s.head
	if cb == nil {
		return nil
	}
	s.head = cb.next
	cb.next = nil
	cb.queued = false
	return cb
}

// OnTaskCreated decides who runs after target is signalled while current
// runs. A target that outranks current runs now and current goes back in
// line, otherwise target waits in the queue.
//
// Suspended events only ever resume in nest order: each preemption needs a
// strictly higher priority, so the innermost suspended event is always
// the best ranked started one in the queue.
func (s *Scheduler) OnTaskCreated(current, target *ControlBlock) *ControlBlock {
	if target == current || target == s.idle || target.queued {
		return current
	}
	if target.Outranks(current) {
		s.enqueue(current)
		return target
	}
	s.enqueue(target)
	return current
}

// OnTaskTerminated picks the next event after current has finished.
func (s *Scheduler) OnTaskTerminated(current *ControlBlock) *ControlBlock {
	if next := s.dequeue(); next != nil {
		return next
	}
	return s.idle
}

// Ready returns the queue, head first.
func (s *Scheduler) Ready() []*ControlBlock {
	var out []*ControlBlock
	for cb := s.head; cb != nil; cb = cb.next {
		out = append(out, cb)
	}
	return out
}
