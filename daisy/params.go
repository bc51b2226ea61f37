//Package daisy computes dense DAISY descriptors, on opencl devices through an ocl.Constructs
// or on the CPU with the reference implementation.
package daisy

import (
	"math"

	"golang.org/x/xerrors"
)

// ErrInvalidParams is returned by Params.Validate
var ErrInvalidParams = xerrors.New("daisy: invalid parameters")

// maxHistograms bounds the per work item histogram array in the describe kernel
const maxHistograms = 32

//Params defines the descriptor layout
type Params struct {
	//Radius of the outermost ring in pixels
	Radius float64 `toml:"radius"`
	//Rings is the number of rings around the center (Q)
	Rings int `toml:"rings"`
	//Points is the number of histograms on each ring (T)
	Points int `toml:"points"`
	//Histograms is the number of orientation bins (H)
	Histograms int `toml:"histograms"`
	//Step is the distance in pixels between computed descriptors
	Step int `toml:"step"`
}

//DefaultParams returns the usual R=15, Q=3, T=8, H=8 layout, computed at every pixel
func DefaultParams() Params {
	return Params{
		Radius:     15,
		Rings:      3,
		Points:     8,
		Histograms: 8,
		Step:       1,
	}
}

func (p Params) Validate() error {
	switch {
	case p.Radius <= 0:
		return xerrors.Errorf("radius %v: %w", p.Radius, ErrInvalidParams)
	case p.Rings < 1:
		return xerrors.Errorf("rings %d: %w", p.Rings, ErrInvalidParams)
	case p.Points < 1:
		return xerrors.Errorf("points %d: %w", p.Points, ErrInvalidParams)
	case p.Histograms < 1 || p.Histograms > maxHistograms:
		return xerrors.Errorf("histograms %d: %w", p.Histograms, ErrInvalidParams)
	case p.Step < 1:
		return xerrors.Errorf("step %d: %w", p.Step, ErrInvalidParams)
	}
	return nil
}

//GridPoints is the number of histograms in a descriptor, the center plus every ring point
func (p Params) GridPoints() int {
	return p.Rings*p.Points + 1
}

//DescriptorLength is the number of floats in one descriptor
func (p Params) DescriptorLength() int {
	return p.GridPoints() * p.Histograms
}

//RingRadii returns the radius of each ring, innermost first
func (p Params) RingRadii() []float64 {
	radii := make([]float64, p.Rings)
	for i := range radii {
		radii[i] = p.Radius * float64(i+1) / float64(p.Rings)
	}
	return radii
}

//RingSigmas returns the gaussian sigma each ring samples at
func (p Params) RingSigmas() []float64 {
	sigmas := make([]float64, p.Rings)
	for i := range sigmas {
		sigmas[i] = p.Radius * float64(i+1) / float64(2*p.Rings)
	}
	return sigmas
}

// smoothingSigmas returns the sigmas that take the gradient layers to cube 0
// and then every cube to the next one.
func (p Params) smoothingSigmas() []float64 {
	sigmas := p.RingSigmas()
	incremental := make([]float64, len(sigmas))
	previous := 0.0
	for i, s := range sigmas {
		incremental[i] = math.Sqrt(s*s - previous*previous)
		previous = s
	}
	return incremental
}

//GridOffsets returns the sample offsets of a descriptor: the center, then every ring from the inside out
func (p Params) GridOffsets() [][2]int32 {
	offsets := make([][2]int32, 0, p.GridPoints())
	offsets = append(offsets, [2]int32{0, 0})
	for _, r := range p.RingRadii() {
		for j := 0; j < p.Points; j++ {
			angle := 2 * math.Pi * float64(j) / float64(p.Points)
			offsets = append(offsets, [2]int32{
				int32(math.Round(r * math.Cos(angle))),
				int32(math.Round(r * math.Sin(angle))),
			})
		}
	}
	return offsets
}

// gridLevel returns the cube grid point k samples from
func (p Params) gridLevel(k int) int {
	if k == 0 {
		return 0
	}
	return (k - 1) / p.Points
}

//DescriptorsSize returns the number of descriptors computed along x and y for an image
func (p Params) DescriptorsSize(width, height int) (int, int) {
	return (width + p.Step - 1) / p.Step, (height + p.Step - 1) / p.Step
}

//GaussianKernel returns normalized weights for a gaussian with the given sigma.
// The kernel has half width ceil(3*sigma), at least 1.
func GaussianKernel(sigma float64) []float32 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	weights := make([]float64, 2*radius+1)
	var sum float64
	for i := range weights {
		x := float64(i - radius)
		weights[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += weights[i]
	}
	kernel := make([]float32, len(weights))
	for i, w := range weights {
		kernel[i] = float32(w / sum)
	}
	return kernel
}
