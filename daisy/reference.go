package daisy

import (
	"math"
)

const normThreshold = 1e-10

//Compute is the CPU reference implementation of the descriptor pipeline.
// It follows the opencl kernels step by step, results agree up to float rounding.
func Compute(img *Image, p Params) (*Descriptors, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil, ErrEmptyImage
	}
	cubes := smoothedCubes(img, p)
	return describe(cubes, img.Width, img.Height, p), nil
}

// gradientLayers returns p.Histograms layers of positive oriented gradients
func gradientLayers(img *Image, histograms int) [][]float32 {
	layers := make([][]float32, histograms)
	for o := range layers {
		layers[o] = make([]float32, img.Width*img.Height)
	}
	cos := make([]float32, histograms)
	sin := make([]float32, histograms)
	for o := 0; o < histograms; o++ {
		angle := 2 * math.Pi * float64(o) / float64(histograms)
		cos[o] = float32(math.Cos(angle))
		sin[o] = float32(math.Sin(angle))
	}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			dx := (img.at(x+1, y) - img.at(x-1, y)) / 2
			dy := (img.at(x, y+1) - img.at(x, y-1)) / 2
			i := y*img.Width + x
			for o := 0; o < histograms; o++ {
				v := cos[o]*dx + sin[o]*dy
				if v > 0 {
					layers[o][i] = v
				}
			}
		}
	}
	return layers
}

// convolve smooths layer in place with a separable kernel, borders clamped
func convolve(layer, scratch []float32, width, height int, kernel []float32) {
	radius := len(kernel) / 2
	for y := 0; y < height; y++ {
		row := layer[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			var sum float32
			for k, w := range kernel {
				sum += w * row[clamp(x+k-radius, width)]
			}
			scratch[y*width+x] = sum
		}
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float32
			for k, w := range kernel {
				sum += w * scratch[clamp(y+k-radius, height)*width+x]
			}
			layer[y*width+x] = sum
		}
	}
}

// smoothedCubes returns, for every ring, the gradient layers smoothed to that ring's sigma
func smoothedCubes(img *Image, p Params) [][][]float32 {
	layers := gradientLayers(img, p.Histograms)
	scratch := make([]float32, img.Width*img.Height)
	cubes := make([][][]float32, p.Rings)
	for level, sigma := range p.smoothingSigmas() {
		kernel := GaussianKernel(sigma)
		cube := make([][]float32, p.Histograms)
		for o := range cube {
			if level == 0 {
				cube[o] = layers[o]
			} else {
				cube[o] = append([]float32(nil), cubes[level-1][o]...)
			}
			convolve(cube[o], scratch, img.Width, img.Height, kernel)
		}
		cubes[level] = cube
	}
	return cubes
}

func describe(cubes [][][]float32, width, height int, p Params) *Descriptors {
	d := newDescriptors(width, height, p)
	offsets := p.GridOffsets()
	i := 0
	for y := 0; y < height; y += p.Step {
		for x := 0; x < width; x += p.Step {
			for k, offset := range offsets {
				cube := cubes[p.gridLevel(k)]
				px := clamp(x+int(offset[0]), width)
				py := clamp(y+int(offset[1]), height)
				histogram := d.Data[i : i+p.Histograms]
				var norm float32
				for o := range histogram {
					v := cube[o][py*width+px]
					histogram[o] = v
					norm += v * v
				}
				normalize(histogram, norm)
				i += p.Histograms
			}
		}
	}
	return d
}

func normalize(histogram []float32, squaredNorm float32) {
	norm := float32(math.Sqrt(float64(squaredNorm)))
	if norm < normThreshold {
		for o := range histogram {
			histogram[o] = 0
		}
		return
	}
	for o := range histogram {
		histogram[o] /= norm
	}
}
