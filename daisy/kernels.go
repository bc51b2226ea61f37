package daisy

import "fmt"

// layersSource holds the gradient and separable convolution kernels.
// Layers of one cube are stored one after the other, each plane width*height floats.
const layersSource = `
inline int clampIndex(const int v, const int n)
{
	return min(max(v, 0), n - 1);
}

__kernel void gradientLayers(__global const float *image, __global float *layers,
	const int width, const int height, const int histograms)
{
	const int x = get_global_id(0);
	const int y = get_global_id(1);
	const int plane = width * height;
	const int row = y * width;

	const float dx = (image[row + clampIndex(x + 1, width)] - image[row + clampIndex(x - 1, width)]) / 2.0f;
	const float dy = (image[clampIndex(y + 1, height) * width + x] - image[clampIndex(y - 1, height) * width + x]) / 2.0f;

	for (int o = 0; o < histograms; o++) {
		const float angle = 2.0f * M_PI_F * (float)o / (float)histograms;
		layers[o * plane + row + x] = max(cos(angle) * dx + sin(angle) * dy, 0.0f);
	}
}

__kernel void convolveX(__global const float *src, __global float *dst,
	__global const float *weights, const int weightOffset, const int radius,
	const int srcOffset, const int dstOffset, const int width, const int height)
{
	const int x = get_global_id(0);
	const int y = get_global_id(1);
	const int layer = get_global_id(2);
	const int base = layer * width * height + y * width;

	float sum = 0.0f;
	for (int k = -radius; k <= radius; k++) {
		sum += weights[weightOffset + k + radius] * src[srcOffset + base + clampIndex(x + k, width)];
	}
	dst[dstOffset + base + x] = sum;
}

__kernel void convolveY(__global const float *src, __global float *dst,
	__global const float *weights, const int weightOffset, const int radius,
	const int srcOffset, const int dstOffset, const int width, const int height)
{
	const int x = get_global_id(0);
	const int y = get_global_id(1);
	const int layer = get_global_id(2);
	const int base = layer * width * height;

	float sum = 0.0f;
	for (int k = -radius; k <= radius; k++) {
		sum += weights[weightOffset + k + radius] * src[srcOffset + base + clampIndex(y + k, height) * width + x];
	}
	dst[dstOffset + base + y * width + x] = sum;
}
`

// describeSource gathers and normalizes the histograms of every descriptor.
// RINGS, POINTS and HISTOGRAMS are supplied as build options.
const describeSource = `
#define GRID_POINTS (RINGS * POINTS + 1)
#define NORM_THRESHOLD 1e-10f

inline int clampIndex(const int v, const int n)
{
	return min(max(v, 0), n - 1);
}

__kernel void describe(__global const float *cubes, __global const int *grid, __global float *descriptors,
	const int width, const int height, const int step, const int cols)
{
	const int cx = get_global_id(0);
	const int cy = get_global_id(1);
	const int x = cx * step;
	const int y = cy * step;
	const int plane = width * height;

	__global float *out = descriptors + (cy * cols + cx) * GRID_POINTS * HISTOGRAMS;
	float histogram[HISTOGRAMS];

	for (int k = 0; k < GRID_POINTS; k++) {
		const int level = k == 0 ? 0 : (k - 1) / POINTS;
		const int px = clampIndex(x + grid[2 * k], width);
		const int py = clampIndex(y + grid[2 * k + 1], height);
		__global const float *cube = cubes + level * HISTOGRAMS * plane + py * width + px;

		float norm = 0.0f;
		for (int o = 0; o < HISTOGRAMS; o++) {
			histogram[o] = cube[o * plane];
			norm += histogram[o] * histogram[o];
		}
		norm = sqrt(norm);
		for (int o = 0; o < HISTOGRAMS; o++) {
			out[k * HISTOGRAMS + o] = norm < NORM_THRESHOLD ? 0.0f : histogram[o] / norm;
		}
	}
}
`

func describeOptions(p Params) string {
	return fmt.Sprintf("-D RINGS=%d -D POINTS=%d -D HISTOGRAMS=%d", p.Rings, p.Points, p.Histograms)
}
