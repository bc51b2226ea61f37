package daisy

import (
	"context"
	"log"
	"time"

	"github.com/pogilon/DAISY-BP/ocl"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// ErrNoWorkers is returned when a Dispatcher has no devices to run on
var ErrNoWorkers = xerrors.New("daisy: no devices to dispatch to")

//Report is sent by the workers after every frame, giving combined information as output
type Report struct {
	DeviceID            int
	MegapixelsPerSecond float64
}

//Job is a frame to compute descriptors for
type Job struct {
	Name  string
	Image *Image
}

//Result carries the descriptors computed for a job
type Result struct {
	Job         *Job
	DeviceID    int
	Descriptors *Descriptors
}

//Dispatcher runs a worker per device, all of them fed from the same job channel
type Dispatcher struct {
	//Devices are the global device indices to run on
	Devices []int
	//UseCPU includes cpu devices when resolving the indices
	UseCPU bool
	//InOrderOnly disables the out-of-order upload queue
	InOrderOnly bool
	Params      Params
	//Reference computes on the CPU, the device indices then only name the workers
	Reference bool
	Reports   chan *Report
}

//Run starts the workers and blocks until jobs is closed and drained or a worker fails.
// The first error cancels the other workers and is returned.
func (d *Dispatcher) Run(ctx context.Context, jobs <-chan *Job, results chan<- *Result) error {
	if len(d.Devices) == 0 {
		return ErrNoWorkers
	}
	if err := d.Params.Validate(); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, deviceID := range d.Devices {
		w := &deviceWorker{
			deviceID:   deviceID,
			dispatcher: d,
		}
		g.Go(func() error {
			return w.run(ctx, jobs, results)
		})
	}
	return g.Wait()
}

type computeFunc func(ctx context.Context, img *Image) (*Descriptors, error)

//deviceWorker computes descriptors on 1 opencl device
type deviceWorker struct {
	deviceID   int
	dispatcher *Dispatcher
}

func (w *deviceWorker) setup() (compute computeFunc, release func(), err error) {
	d := w.dispatcher
	if d.Reference {
		log.Println(w.deviceID, "- Initialized reference implementation")
		return func(_ context.Context, img *Image) (*Descriptors, error) {
			return Compute(img, d.Params)
		}, func() {}, nil
	}

	c := ocl.NewConstructs(PipelinePrograms, PipelineBuffers, d.UseCPU)
	c.Properties.Index = w.deviceID
	c.Properties.OutOfOrder = !d.InOrderOnly
	if _, err = ocl.BuildCachedConstructs(c); err != nil {
		return nil, nil, err
	}
	log.Println(w.deviceID, "- Initializing", c.DeviceInfo.Type, "-", c.DeviceInfo.Name)
	pl, err := NewPipeline(c, d.Params)
	if err != nil {
		c.Release()
		return nil, nil, err
	}
	log.Println(w.deviceID, "- Initialized", c.DeviceInfo.Type, "-", c.DeviceInfo.Name, "- out-of-order uploads:", c.OutOfOrder())
	return pl.Run, func() {
		pl.Close()
		c.Release()
	}, nil
}

func (w *deviceWorker) run(ctx context.Context, jobs <-chan *Job, results chan<- *Result) error {
	compute, release, err := w.setup()
	if err != nil {
		return xerrors.Errorf("device %d: %w", w.deviceID, err)
	}
	defer release()

	for {
		var job *Job
		ok := true
		select {
		case job, ok = <-jobs:
		case <-ctx.Done():
			return ctx.Err()
		default:
			log.Println(w.deviceID, "-", "No work ready")
			select {
			case job, ok = <-jobs:
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Println(w.deviceID, "-", "Continuing")
		}
		if !ok {
			log.Println("Halting worker", w.deviceID)
			return nil
		}

		start := time.Now()
		descriptors, err := compute(ctx, job.Image)
		if err != nil {
			return xerrors.Errorf("device %d, %s: %w", w.deviceID, job.Name, err)
		}
		select {
		case results <- &Result{Job: job, DeviceID: w.deviceID, Descriptors: descriptors}:
		case <-ctx.Done():
			return ctx.Err()
		}

		if w.dispatcher.Reports != nil {
			pixels := float64(job.Image.Width * job.Image.Height)
			rate := pixels / (time.Since(start).Seconds() * 1000000)
			select {
			case w.dispatcher.Reports <- &Report{DeviceID: w.deviceID, MegapixelsPerSecond: rate}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
