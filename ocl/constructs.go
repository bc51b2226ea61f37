package ocl

import (
	"log"

	"github.com/robvanmieghem/go-opencl/cl"
	"golang.org/x/xerrors"

	lru "github.com/hashicorp/golang-lru"
)

const defaultProgramCacheSize = 8

//ContextProperties are the properties used to select a device and create its context and queues
type ContextProperties struct {
	DeviceType cl.DeviceType
	//Excluded is a comma separated list of device indices that should not be used
	Excluded string
	//Index selects a specific device, a negative value takes the first suitable one
	Index int
	//OutOfOrder requests an out-of-order command queue next to the in-order one
	OutOfOrder bool
	//ShareGL requests OpenGL sharing, which the binding does not provide
	ShareGL bool
}

//Constructs bundles the opencl objects used on a single device.
// It exclusively owns every handle it holds, Release frees them.
// A Constructs is not safe for concurrent use.
type Constructs struct {
	Platform *cl.Platform
	Device   *cl.Device
	Context  *cl.Context

	//Program is the primary program, Programs the auxiliary ones
	Program       *cl.Program
	Programs      []*cl.Program
	ProgramsCount int

	//IOQueue executes in order, OOQueue out of order when the device supports it
	IOQueue *cl.CommandQueue
	OOQueue *cl.CommandQueue

	Buffers     []*cl.MemObject
	bufferSizes []int

	Properties *ContextProperties

	DeviceInfo DeviceInfo

	built      bool
	outOfOrder bool
	programs   *lru.Cache
	orphans    map[*cl.Program]bool
}

//NewConstructs allocates an unbuilt Constructs with room for programsCount auxiliary programs
// and buffersCount buffers. No opencl object is created until BuildCachedConstructs is called.
func NewConstructs(programsCount, buffersCount uint32, useCPU bool) *Constructs {
	return &Constructs{
		Programs:      make([]*cl.Program, programsCount),
		ProgramsCount: int(programsCount),
		Buffers:       make([]*cl.MemObject, buffersCount),
		bufferSizes:   make([]int, buffersCount),
		Properties: &ContextProperties{
			DeviceType: DeviceType(useCPU),
			Index:      -1,
			OutOfOrder: true,
		},
		orphans: make(map[*cl.Program]bool),
	}
}

//Built reports if BuildCachedConstructs succeeded and Release has not been called since
func (c *Constructs) Built() bool {
	return c.built
}

//OutOfOrder reports if OOQueue really executes out of order
func (c *Constructs) OutOfOrder() bool {
	return c.outOfOrder
}

//BuildCachedConstructs selects the platform and device and creates the context and command queues.
// cached is true when c was already built, in which case nothing is touched.
// On error every object created so far is released again.
func BuildCachedConstructs(c *Constructs) (cached bool, err error) {
	if c.built {
		return true, nil
	}
	props := c.Properties
	if props == nil {
		props = &ContextProperties{DeviceType: cl.DeviceTypeGPU, Index: -1, OutOfOrder: true}
		c.Properties = props
	}
	if props.ShareGL {
		return false, xerrors.Errorf("gl sharing: %w", ErrUnsupported)
	}

	entries, err := enumerateDevices(props.DeviceType)
	if err != nil {
		return false, err
	}
	infos := make([]DeviceInfo, len(entries))
	for i, e := range entries {
		infos[i] = e.info
	}
	selected, err := selectDevice(infos, props.Excluded, props.Index)
	if err != nil {
		return false, err
	}
	entry := entries[selected]

	defer func() {
		if err != nil {
			c.releaseHandles()
		}
	}()

	c.Platform = entry.platform
	c.Device = entry.device
	c.DeviceInfo = entry.info

	c.Context, err = cl.CreateContext([]*cl.Device{c.Device})
	if err != nil {
		return false, wrapErr("create context", err)
	}

	c.IOQueue, err = c.Context.CreateCommandQueue(c.Device, 0)
	if err != nil {
		return false, wrapErr("create in-order queue", err)
	}

	c.outOfOrder = false
	if props.OutOfOrder {
		c.OOQueue, err = c.Context.CreateCommandQueue(c.Device, cl.CommandQueueOutOfOrderExecModeEnable)
		if err == nil {
			c.outOfOrder = true
		} else {
			log.Println(c.DeviceInfo.Index, "- No out-of-order queue support, falling back to in-order -", err)
		}
	}
	if c.OOQueue == nil {
		c.OOQueue, err = c.Context.CreateCommandQueue(c.Device, 0)
		if err != nil {
			return false, wrapErr("create second queue", err)
		}
	}

	c.programs, err = lru.NewWithEvict(defaultProgramCacheSize, c.onProgramEvicted)
	if err != nil {
		return false, wrapErr("create program cache", err)
	}

	c.built = true
	return false, nil
}

//Release frees all opencl objects held by c. It is safe to call more than once.
func (c *Constructs) Release() {
	c.releaseHandles()
}

func (c *Constructs) releaseHandles() {
	for i, buffer := range c.Buffers {
		if buffer != nil {
			buffer.Release()
			c.Buffers[i] = nil
			c.bufferSizes[i] = 0
		}
	}

	held := make([]*cl.Program, 0, len(c.Programs)+1)
	if c.Program != nil {
		held = append(held, c.Program)
		c.Program = nil
	}
	for i, p := range c.Programs {
		if p != nil {
			held = append(held, p)
			c.Programs[i] = nil
		}
	}
	if c.programs != nil {
		// Slots are cleared, so the eviction callback releases every cached program
		c.programs.Purge()
		c.programs = nil
	}
	for _, p := range held {
		if c.orphans[p] {
			p.Release()
			delete(c.orphans, p)
		}
	}

	if c.OOQueue != nil {
		c.OOQueue.Release()
		c.OOQueue = nil
	}
	if c.IOQueue != nil {
		c.IOQueue.Release()
		c.IOQueue = nil
	}
	if c.Context != nil {
		c.Context.Release()
		c.Context = nil
	}
	c.Device = nil
	c.Platform = nil
	c.built = false
	c.outOfOrder = false
}
