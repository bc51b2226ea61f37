package daisy

import (
	"image"
	"image/color"
	"io"

	// Registered for Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/xerrors"
)

// ErrEmptyImage is returned for images without pixels
var ErrEmptyImage = xerrors.New("daisy: empty image")

//Image is a grayscale image with luminance in [0,1], stored row major
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// at returns the pixel at x, y with coordinates clamped to the image
func (img *Image) at(x, y int) float32 {
	return img.Pix[clamp(y, img.Height)*img.Width+clamp(x, img.Width)]
}

//FromImage converts any image to luminance
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	img := NewImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			gray := color.Gray16Model.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			img.Pix[y*img.Width+x] = float32(gray.Y) / 0xffff
		}
	}
	return img
}

//Decode reads a png, jpeg or gif image
func Decode(r io.Reader) (*Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, xerrors.Errorf("decode image: %w", err)
	}
	img := FromImage(src)
	if img.Width == 0 || img.Height == 0 {
		return nil, xerrors.Errorf("%s: %w", format, ErrEmptyImage)
	}
	return img, nil
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
