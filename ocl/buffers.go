package ocl

import (
	"github.com/robvanmieghem/go-opencl/cl"
	"golang.org/x/xerrors"
)

//CreateEmptyBuffer calls CreateEmptyBuffer on the supplied context and names the requested size on failure
func CreateEmptyBuffer(ctx *cl.Context, flags cl.MemFlag, size int) (*cl.MemObject, error) {
	if size <= 0 {
		return nil, xerrors.Errorf("%d bytes: %w", size, ErrInvalidSize)
	}
	buffer, err := ctx.CreateEmptyBuffer(flags, size)
	if err != nil {
		return nil, xerrors.Errorf("create buffer of %d bytes: %w", size, err)
	}
	return buffer, nil
}

//Buffer returns the buffer in slot, reallocating it when it is smaller than size bytes.
// A buffer that is large enough is reused as is, its contents are not cleared.
func (c *Constructs) Buffer(slot int, flags cl.MemFlag, size int) (*cl.MemObject, error) {
	if !c.built {
		return nil, ErrNotBuilt
	}
	if slot < 0 || slot >= len(c.Buffers) {
		return nil, xerrors.Errorf("buffer slot %d: %w", slot, ErrSlotOutOfRange)
	}
	if c.Buffers[slot] != nil && c.bufferSizes[slot] >= size && size > 0 {
		return c.Buffers[slot], nil
	}
	buffer, err := CreateEmptyBuffer(c.Context, flags, size)
	if err != nil {
		return nil, err
	}
	if c.Buffers[slot] != nil {
		c.Buffers[slot].Release()
	}
	c.Buffers[slot] = buffer
	c.bufferSizes[slot] = size
	return buffer, nil
}

//BufferSize returns the allocated size in bytes of the buffer in slot, 0 if none is allocated
func (c *Constructs) BufferSize(slot int) int {
	if slot < 0 || slot >= len(c.bufferSizes) {
		return 0
	}
	return c.bufferSizes[slot]
}
