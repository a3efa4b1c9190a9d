package kernel

import (
	"github.com/pkg/errors"
)

// Registry is the fixed event table.
type Registry struct {
	blocks [Capacity]ControlBlock
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.blocks {
		r.blocks[i].ID = EventID(i)
	}
	return r
}

func (r *Registry) Get(id EventID) (*ControlBlock, error) {
	if int(id) >= len(r.blocks) {
		return nil, errors.Errorf("event id %d out of range (capacity %d)", id, Capacity)
	}
	return &r.blocks[id], nil
}

// Register binds handler to id, replacing any earlier binding. A running
// or queued event keeps the frame it already has.
func (r *Registry) Register(id EventID, handler Ptr) error {
	cb, err := r.Get(id)
	if err != nil {
		return err
	}
	cb.Handler = handler
	return nil
}

func (r *Registry) Idle() *ControlBlock {
	return &r.blocks[IdleEvent]
}

func (r *Registry) All() []*ControlBlock {
	out := make([]*ControlBlock, len(r.blocks))
	for i := range r.blocks {
		out[i] = &r.blocks[i]
	}
	return out
}
