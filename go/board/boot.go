package board

import (
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/evcorn/go/kernel"
	"github.com/lunixbochs/evcorn/go/models"
)

// Image is guest code plus the handler bound to each event at boot.
type Image struct {
	Base     uint64
	Code     []byte
	Handlers map[kernel.EventID]uint32
	Symbols  map[string]uint64
}

// Boot brings up the board, loads img, reserves the shared stack and
// binds the image's handlers. The returned kernel is ready to Run.
func Boot(config *models.Config, img *Image, tx io.Writer) (*Board, *kernel.Kernel, error) {
	config = config.Init()
	b, err := New(config, tx)
	if err != nil {
		return nil, nil, err
	}
	if err := b.Load(img); err != nil {
		return nil, nil, err
	}
	stack, err := b.Alloc.Malloc(uint64(config.StackSize), "shared stack")
	if err != nil {
		return nil, nil, errors.Wrap(err, "allocating shared stack")
	}
	k, err := kernel.New(b, b.Uart, uint32(stack), config.StackSize, config)
	if err != nil {
		return nil, nil, err
	}
	for id, handler := range img.Handlers {
		if err := k.Register(id, kernel.Ptr(handler)); err != nil {
			return nil, nil, errors.Wrapf(err, "binding %s", id)
		}
	}
	return b, k, nil
}
