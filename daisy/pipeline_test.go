package daisy

import (
	"context"
	"testing"

	"github.com/pogilon/DAISY-BP/ocl"
	"github.com/robvanmieghem/go-opencl/cl"
	"github.com/stretchr/testify/require"
)

func constructsOrSkip(t *testing.T) *ocl.Constructs {
	c := ocl.NewConstructs(PipelinePrograms, PipelineBuffers, true)
	if _, err := ocl.BuildCachedConstructs(c); err != nil {
		t.Skip("No usable opencl device -", err)
	}
	t.Log(c.DeviceInfo.Type, "-", c.DeviceInfo.Name)
	return c
}

func requireClose(t *testing.T, expected, actual *Descriptors) {
	require.Equal(t, expected.Length, actual.Length)
	require.Equal(t, expected.Count(), actual.Count())
	for i := range expected.Data {
		if d := expected.Data[i] - actual.Data[i]; d > 1e-3 || d < -1e-3 {
			t.Fatalf("value %d differs, reference %v, device %v", i, expected.Data[i], actual.Data[i])
		}
	}
}

func TestPipelineMatchesReference(t *testing.T) {
	c := constructsOrSkip(t)
	defer c.Release()

	testSet := []struct {
		params Params
		width  int
		height int
	}{
		{params: DefaultParams(), width: 40, height: 30},
		{params: Params{Radius: 6, Rings: 2, Points: 4, Histograms: 4, Step: 3}, width: 23, height: 17},
	}
	for i, test := range testSet {
		pl, err := NewPipeline(c, test.params)
		require.NoError(t, err)

		img := randomImage(test.width, test.height, int64(i))
		expected, err := Compute(img, test.params)
		require.NoError(t, err)
		actual, err := pl.Run(context.Background(), img)
		require.NoError(t, err)
		requireClose(t, expected, actual)

		// A second, smaller frame reuses the buffers of the first
		small := randomImage(test.width/2, test.height/2, int64(i)+10)
		expected, err = Compute(small, test.params)
		require.NoError(t, err)
		actual, err = pl.Run(context.Background(), small)
		require.NoError(t, err)
		requireClose(t, expected, actual)

		pl.Close()
	}
	require.Equal(t, 3, c.CachedPrograms())
}

func TestPipelineCanceled(t *testing.T) {
	c := constructsOrSkip(t)
	defer c.Release()

	pl, err := NewPipeline(c, DefaultParams())
	require.NoError(t, err)
	defer pl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pl.Run(ctx, randomImage(8, 8, 1))
	require.ErrorIs(t, err, context.Canceled)

	_, err = pl.Run(context.Background(), NewImage(0, 0))
	require.Equal(t, ErrEmptyImage, err)
}

func TestNewPipelineRequiresSlots(t *testing.T) {
	_, err := NewPipeline(ocl.NewConstructs(PipelinePrograms, PipelineBuffers, false), DefaultParams())
	require.ErrorIs(t, err, ocl.ErrNotBuilt)

	_, err = NewPipeline(ocl.NewConstructs(PipelinePrograms, PipelineBuffers, false), Params{})
	require.ErrorIs(t, err, ErrInvalidParams)

	c := ocl.NewConstructs(0, 1, true)
	if _, err := ocl.BuildCachedConstructs(c); err != nil {
		t.Skip("No usable opencl device -", err)
	}
	defer c.Release()
	_, err = NewPipeline(c, DefaultParams())
	require.ErrorIs(t, err, ocl.ErrSlotOutOfRange)
}

func TestUploadFailureWaitsForPendingWrites(t *testing.T) {
	c := constructsOrSkip(t)
	defer c.Release()

	pl, err := NewPipeline(c, DefaultParams())
	require.NoError(t, err)
	defer pl.Close()

	img := randomImage(16, 16, 7)
	imageObj, err := c.Buffer(bufferImage, cl.MemReadOnly, len(img.Pix)*float32Size)
	require.NoError(t, err)
	// Too small for the weights, the second write is rejected after the image write was enqueued
	weightsObj, err := c.Buffer(bufferWeights, cl.MemReadOnly, float32Size)
	require.NoError(t, err)
	gridObj, err := c.Buffer(bufferGrid, cl.MemReadOnly, len(pl.grid)*4)
	require.NoError(t, err)

	err = pl.upload(imageObj, weightsObj, gridObj, img)
	require.Error(t, err)
	require.Contains(t, err.Error(), "write weights")

	// The constructs stay usable once the failed upload returned
	_, err = pl.Run(context.Background(), img)
	require.NoError(t, err)
}
