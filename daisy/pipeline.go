package daisy

import (
	"context"
	"log"
	"runtime"
	"unsafe"

	"github.com/pogilon/DAISY-BP/ocl"
	"github.com/robvanmieghem/go-opencl/cl"
	"golang.org/x/xerrors"
)

// Buffer slots of the constructs a pipeline runs on
const (
	bufferImage = iota
	bufferScratch
	bufferCubes
	bufferWeights
	bufferGrid
	bufferDescriptors

	// PipelineBuffers is the number of buffer slots NewPipeline needs
	PipelineBuffers = iota
)

// PipelinePrograms is the number of auxiliary program slots NewPipeline needs
const PipelinePrograms = 1

const programDescribe = 0

const float32Size = 4

//Pipeline computes descriptors on the device of a built ocl.Constructs
type Pipeline struct {
	constructs *ocl.Constructs
	params     Params

	gradient  *cl.Kernel
	convolveX *cl.Kernel
	convolveY *cl.Kernel
	describe  *cl.Kernel

	grid          []int32
	weights       []float32
	weightOffsets []int
	radii         []int
}

//NewPipeline loads the programs and kernels for p on c, c must be built
func NewPipeline(c *ocl.Constructs, p Params) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !c.Built() {
		return nil, ocl.ErrNotBuilt
	}
	if c.ProgramsCount < PipelinePrograms || len(c.Buffers) < PipelineBuffers {
		return nil, xerrors.Errorf("pipeline needs %d programs and %d buffers: %w", PipelinePrograms, PipelineBuffers, ocl.ErrSlotOutOfRange)
	}

	pl := &Pipeline{constructs: c, params: p}
	if err := pl.createKernels(); err != nil {
		pl.Close()
		return nil, err
	}

	for _, offset := range p.GridOffsets() {
		pl.grid = append(pl.grid, offset[0], offset[1])
	}
	for _, sigma := range p.smoothingSigmas() {
		kernel := GaussianKernel(sigma)
		pl.weightOffsets = append(pl.weightOffsets, len(pl.weights))
		pl.radii = append(pl.radii, len(kernel)/2)
		pl.weights = append(pl.weights, kernel...)
	}
	return pl, nil
}

func (pl *Pipeline) createKernels() (err error) {
	c := pl.constructs
	layers, err := c.LoadProgram(ocl.PrimaryProgram, ocl.ProgramSource{Name: "layers", Source: layersSource})
	if err != nil {
		return err
	}
	describe, err := c.LoadProgram(programDescribe, ocl.ProgramSource{Name: "describe", Source: describeSource, Options: describeOptions(pl.params)})
	if err != nil {
		return err
	}

	if pl.gradient, err = c.CreateKernel(layers, "gradientLayers"); err != nil {
		return err
	}
	if pl.convolveX, err = c.CreateKernel(layers, "convolveX"); err != nil {
		return err
	}
	if pl.convolveY, err = c.CreateKernel(layers, "convolveY"); err != nil {
		return err
	}
	pl.describe, err = c.CreateKernel(describe, "describe")
	return err
}

//Close releases the kernels, programs and buffers stay with the constructs
func (pl *Pipeline) Close() {
	for _, k := range []**cl.Kernel{&pl.gradient, &pl.convolveX, &pl.convolveY, &pl.describe} {
		if *k != nil {
			(*k).Release()
			*k = nil
		}
	}
}

//Run computes the descriptors of img.
// Inputs are uploaded on the out-of-order queue, the kernels run in order on the in-order queue.
func (pl *Pipeline) Run(ctx context.Context, img *Image) (*Descriptors, error) {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil, ErrEmptyImage
	}
	c := pl.constructs
	p := pl.params
	width, height := img.Width, img.Height
	plane := width * height
	cols, rows := p.DescriptorsSize(width, height)
	d := newDescriptors(width, height, p)

	imageObj, err := c.Buffer(bufferImage, cl.MemReadOnly, plane*float32Size)
	if err != nil {
		return nil, err
	}
	scratchObj, err := c.Buffer(bufferScratch, cl.MemReadWrite, p.Histograms*plane*float32Size)
	if err != nil {
		return nil, err
	}
	cubesObj, err := c.Buffer(bufferCubes, cl.MemReadWrite, p.Rings*p.Histograms*plane*float32Size)
	if err != nil {
		return nil, err
	}
	weightsObj, err := c.Buffer(bufferWeights, cl.MemReadOnly, len(pl.weights)*float32Size)
	if err != nil {
		return nil, err
	}
	gridObj, err := c.Buffer(bufferGrid, cl.MemReadOnly, len(pl.grid)*4)
	if err != nil {
		return nil, err
	}
	descriptorsObj, err := c.Buffer(bufferDescriptors, cl.MemWriteOnly, len(d.Data)*float32Size)
	if err != nil {
		return nil, err
	}

	if err = pl.upload(imageObj, weightsObj, gridObj, img); err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	queue := c.IOQueue
	w, h, layers := int32(width), int32(height), int32(p.Histograms)
	if err = pl.gradient.SetArgs(imageObj, cubesObj, w, h, layers); err != nil {
		return nil, wrapErr("set gradient args", err)
	}
	if _, err = queue.EnqueueNDRangeKernel(pl.gradient, nil, []int{width, height}, nil, nil); err != nil {
		return nil, wrapErr("enqueue gradient", err)
	}

	cubeSize := int32(p.Histograms * plane)
	for level := range pl.radii {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		// Cube 0 is smoothed in place, every further cube starts from the previous one
		dst := int32(level) * cubeSize
		src := dst
		if level > 0 {
			src -= cubeSize
		}
		weightOffset, radius := int32(pl.weightOffsets[level]), int32(pl.radii[level])

		if err = pl.convolveX.SetArgs(cubesObj, scratchObj, weightsObj, weightOffset, radius, src, int32(0), w, h); err != nil {
			return nil, wrapErr("set convolveX args", err)
		}
		if _, err = queue.EnqueueNDRangeKernel(pl.convolveX, nil, []int{width, height, p.Histograms}, nil, nil); err != nil {
			return nil, wrapErr("enqueue convolveX", err)
		}
		if err = pl.convolveY.SetArgs(scratchObj, cubesObj, weightsObj, weightOffset, radius, int32(0), dst, w, h); err != nil {
			return nil, wrapErr("set convolveY args", err)
		}
		if _, err = queue.EnqueueNDRangeKernel(pl.convolveY, nil, []int{width, height, p.Histograms}, nil, nil); err != nil {
			return nil, wrapErr("enqueue convolveY", err)
		}
	}

	if err = pl.describe.SetArgs(cubesObj, gridObj, descriptorsObj, w, h, int32(p.Step), int32(cols)); err != nil {
		return nil, wrapErr("set describe args", err)
	}
	if _, err = queue.EnqueueNDRangeKernel(pl.describe, nil, []int{cols, rows}, nil, nil); err != nil {
		return nil, wrapErr("enqueue describe", err)
	}

	if _, err = queue.EnqueueReadBufferFloat32(descriptorsObj, true, 0, d.Data, nil); err != nil {
		return nil, wrapErr("read descriptors", err)
	}
	return d, nil
}

// upload writes the inputs without blocking and waits for all of them
func (pl *Pipeline) upload(imageObj, weightsObj, gridObj *cl.MemObject, img *Image) error {
	queue := pl.constructs.OOQueue
	events := make([]*cl.Event, 0, 3)
	defer func() {
		for _, e := range events {
			e.Release()
		}
	}()
	// failed waits for the writes already enqueued, they may still read from host memory
	failed := func(msg string, err error) error {
		if len(events) > 0 {
			if werr := cl.WaitForEvents(events); werr != nil {
				log.Println("Waiting for pending uploads -", werr)
			}
		}
		runtime.KeepAlive(img.Pix)
		return wrapErr(msg, err)
	}

	e, err := queue.EnqueueWriteBufferFloat32(imageObj, false, 0, img.Pix, nil)
	if err != nil {
		return failed("write image", err)
	}
	events = append(events, e)
	if e, err = queue.EnqueueWriteBufferFloat32(weightsObj, false, 0, pl.weights, nil); err != nil {
		return failed("write weights", err)
	}
	events = append(events, e)
	if e, err = queue.EnqueueWriteBuffer(gridObj, false, 0, len(pl.grid)*4, unsafe.Pointer(&pl.grid[0]), nil); err != nil {
		return failed("write grid", err)
	}
	events = append(events, e)

	if err = cl.WaitForEvents(events); err != nil {
		return wrapErr("wait for uploads", err)
	}
	runtime.KeepAlive(img.Pix)
	return nil
}

func wrapErr(msg string, err error) error {
	return xerrors.Errorf("%s: %w", msg, err)
}
