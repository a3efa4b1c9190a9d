package kernel

import (
	"fmt"
	"strings"

	"github.com/lunixbochs/evcorn/go/models"
)

func (k *Kernel) state(cb *ControlBlock) (string, string) {
	switch {
	case cb == k.current:
		return "running", models.ColorCurrent
	case cb.queued && cb.started:
		return "preempted", models.ColorQueued
	case cb.queued:
		return "ready", models.ColorQueued
	case cb.started:
		return "suspended", models.ColorIdle
	case !cb.Bound():
		return "unbound", models.ColorIdle
	}
	return "waiting", models.ColorIdle
}

// Status renders the event table and the shared stack nest.
func (k *Kernel) Status() string {
	tab := &models.StatusTable{Header: []string{"id", "handler", "state", "sp"}}
	for _, cb := range k.registry.All() {
		state, color := k.state(cb)
		sp := "-"
		if cb.started {
			sp = fmt.Sprintf("%#08x", cb.SP)
		}
		tab.Add(color, fmt.Sprintf("%d", cb.ID), fmt.Sprintf("%#08x", uint32(cb.Handler)), state, sp)
	}
	var out []string
	out = append(out, tab.String(k.Config.Color))

	var ready []string
	for _, cb := range k.sched.Ready() {
		ready = append(ready, fmt.Sprintf("%d", cb.ID))
	}
	out = append(out, "ready: ["+strings.Join(ready, " ")+"]")

	s := k.stack
	used := s.Base + s.Size - s.LowWater()
	out = append(out, fmt.Sprintf("stack: %#08x-%#08x depth %d/%d, peak %d bytes",
		s.Base, s.Base+s.Size, s.Depth(), s.MaxDepth, used))
	for _, sec := range s.Sections() {
		out = append(out, "  "+sec.String())
	}
	return strings.Join(out, "\n")
}
