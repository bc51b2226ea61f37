package daisy

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherReference(t *testing.T) {
	const frames = 6
	p := DefaultParams()
	p.Step = 4

	jobs := make(chan *Job, frames)
	expected := make(map[string]*Descriptors)
	for i := 0; i < frames; i++ {
		img := randomImage(12, 10, int64(i))
		name := fmt.Sprintf("frame%d", i)
		d, err := Compute(img, p)
		require.NoError(t, err)
		expected[name] = d
		jobs <- &Job{Name: name, Image: img}
	}
	close(jobs)

	results := make(chan *Result, frames)
	reports := make(chan *Report, frames)
	d := &Dispatcher{
		Devices:   []int{0, 1},
		Params:    p,
		Reference: true,
		Reports:   reports,
	}
	require.NoError(t, d.Run(context.Background(), jobs, results))
	close(results)

	seen := 0
	for result := range results {
		require.Contains(t, []int{0, 1}, result.DeviceID)
		require.Equal(t, expected[result.Job.Name], result.Descriptors)
		seen++
	}
	require.Equal(t, frames, seen)
	require.Len(t, reports, frames)
}

func TestDispatcherNoDevices(t *testing.T) {
	d := &Dispatcher{Params: DefaultParams(), Reference: true}
	require.Equal(t, ErrNoWorkers, d.Run(context.Background(), make(chan *Job), make(chan *Result)))
}

func TestDispatcherInvalidParams(t *testing.T) {
	d := &Dispatcher{Devices: []int{0}, Reference: true}
	require.ErrorIs(t, d.Run(context.Background(), make(chan *Job), make(chan *Result)), ErrInvalidParams)
}

func TestDispatcherCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Dispatcher{Devices: []int{0}, Params: DefaultParams(), Reference: true}
	err := d.Run(ctx, make(chan *Job), make(chan *Result))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDispatcherWorkerError(t *testing.T) {
	jobs := make(chan *Job, 1)
	jobs <- &Job{Name: "broken", Image: NewImage(0, 0)}
	d := &Dispatcher{Devices: []int{3}, Params: DefaultParams(), Reference: true}
	err := d.Run(context.Background(), jobs, make(chan *Result, 1))
	require.ErrorIs(t, err, ErrEmptyImage)
	require.Contains(t, err.Error(), "device 3, broken")
}
