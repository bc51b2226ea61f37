package daisy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	require.Equal(t, 25, p.GridPoints())
	require.Equal(t, 200, p.DescriptorLength())
	require.Equal(t, []float64{5, 10, 15}, p.RingRadii())
	require.Equal(t, []float64{2.5, 5, 7.5}, p.RingSigmas())
}

func TestValidate(t *testing.T) {
	testSet := []func(p *Params){
		func(p *Params) { p.Radius = 0 },
		func(p *Params) { p.Rings = 0 },
		func(p *Params) { p.Points = -1 },
		func(p *Params) { p.Histograms = 0 },
		func(p *Params) { p.Histograms = maxHistograms + 1 },
		func(p *Params) { p.Step = 0 },
	}
	for i, mutate := range testSet {
		p := DefaultParams()
		mutate(&p)
		if err := p.Validate(); !xerrors.Is(err, ErrInvalidParams) {
			t.Error(i, p, err)
		}
	}
}

func TestSmoothingSigmasAccumulate(t *testing.T) {
	p := DefaultParams()
	var total float64
	for i, s := range p.smoothingSigmas() {
		total += s * s
		require.InDelta(t, p.RingSigmas()[i], math.Sqrt(total), 1e-9)
	}
}

func TestGridOffsets(t *testing.T) {
	p := Params{Radius: 10, Rings: 2, Points: 4, Histograms: 8, Step: 1}
	require.Equal(t, [][2]int32{
		{0, 0},
		{5, 0}, {0, 5}, {-5, 0}, {0, -5},
		{10, 0}, {0, 10}, {-10, 0}, {0, -10},
	}, p.GridOffsets())

	require.Equal(t, 0, p.gridLevel(0))
	require.Equal(t, 0, p.gridLevel(4))
	require.Equal(t, 1, p.gridLevel(5))
	require.Equal(t, 1, p.gridLevel(8))
}

func TestGaussianKernel(t *testing.T) {
	for _, sigma := range []float64{0.1, 1, 2.5, 7.5} {
		kernel := GaussianKernel(sigma)
		require.Equal(t, 1, len(kernel)%2)
		var sum float32
		for i, w := range kernel {
			sum += w
			require.Equal(t, w, kernel[len(kernel)-1-i])
		}
		require.InDelta(t, 1, sum, 1e-5)
	}
	require.Len(t, GaussianKernel(0.1), 3)
	require.Len(t, GaussianKernel(2.5), 17)
}

func TestDescriptorsSize(t *testing.T) {
	p := DefaultParams()
	p.Step = 4
	cols, rows := p.DescriptorsSize(10, 8)
	require.Equal(t, 3, cols)
	require.Equal(t, 2, rows)
}
