package cpu

import (
	"github.com/pkg/errors"
)

type hookInfo struct {
	htype      int
	start, end uint64
}

func (h *hookInfo) Type() int { return h.htype }

// start > end means the hook matches every address
func (h *hookInfo) Contains(addr uint64) bool {
	return h.start > h.end || addr >= h.start && addr <= h.end
}

type hinfo interface {
	Type() int
}

type codeHook struct {
	hookInfo
	cb func(Cpu, uint64, uint32)
}

type intrHook struct {
	hookInfo
	cb func(Cpu, uint32)
}

type memFaultHook struct {
	hookInfo
	cb func(Cpu, int, uint64, int, int64) bool
}

// Hooks implements HookAdd/HookDel for interpreter cores and dispatches callbacks.
type Hooks struct {
	cpu Cpu

	code     []*codeHook
	intr     []*intrHook
	memFault []*memFaultHook
}

// NewHooks creates a hook set, optionally attaching to a *Mem so faults dispatch automatically.
func NewHooks(cpu Cpu, mem *Mem) *Hooks {
	h := &Hooks{cpu: cpu}
	if mem != nil {
		mem.hooks = h
	}
	return h
}

func (h *Hooks) HookAdd(htype int, cb interface{}, start, end uint64) (Hook, error) {
	info := hookInfo{htype, start, end}
	switch htype {
	case HOOK_CODE:
		fn, ok := cb.(func(Cpu, uint64, uint32))
		if !ok {
			return nil, errors.Errorf("bad code hook callback: %T", cb)
		}
		hh := &codeHook{info, fn}
		h.code = append(h.code, hh)
		return hh, nil
	case HOOK_INTR:
		fn, ok := cb.(func(Cpu, uint32))
		if !ok {
			return nil, errors.Errorf("bad interrupt hook callback: %T", cb)
		}
		hh := &intrHook{info, fn}
		h.intr = append(h.intr, hh)
		return hh, nil
	case HOOK_MEM_ERR:
		fn, ok := cb.(func(Cpu, int, uint64, int, int64) bool)
		if !ok {
			return nil, errors.Errorf("bad fault hook callback: %T", cb)
		}
		hh := &memFaultHook{info, fn}
		h.memFault = append(h.memFault, hh)
		return hh, nil
	}
	return nil, errors.Errorf("unknown hook type: %d", htype)
}

func (h *Hooks) HookDel(hh Hook) error {
	info, ok := hh.(hinfo)
	if !ok {
		return errors.Errorf("not a hook: %T", hh)
	}
	switch info.Type() {
	case HOOK_CODE:
		for i, v := range h.code {
			if v == hh {
				h.code = append(h.code[:i], h.code[i+1:]...)
				return nil
			}
		}
	case HOOK_INTR:
		for i, v := range h.intr {
			if v == hh {
				h.intr = append(h.intr[:i], h.intr[i+1:]...)
				return nil
			}
		}
	case HOOK_MEM_ERR:
		for i, v := range h.memFault {
			if v == hh {
				h.memFault = append(h.memFault[:i], h.memFault[i+1:]...)
				return nil
			}
		}
	}
	return errors.New("hook not found")
}

func (h *Hooks) OnCode(addr uint64, size uint32) {
	for _, v := range h.code {
		if v.Contains(addr) {
			v.cb(h.cpu, addr, size)
		}
	}
}

func (h *Hooks) OnIntr(exc uint32) {
	for _, v := range h.intr {
		v.cb(h.cpu, exc)
	}
}

func (h *Hooks) OnFault(access int, addr uint64, size int, val int64) bool {
	for _, v := range h.memFault {
		if v.Contains(addr) && v.cb(h.cpu, access, addr, size, val) {
			return true
		}
	}
	return false
}
