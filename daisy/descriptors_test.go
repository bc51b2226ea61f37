package daisy

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescriptorFile(t *testing.T) {
	p := DefaultParams()
	p.Step = 5
	d, err := Compute(randomImage(11, 6, 3), p)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDescriptors(&buf, d))
	require.Equal(t, 4+5*4+len(d.Data)*4, buf.Len())
	require.Equal(t, []byte("DSY1"), buf.Bytes()[:4])

	read, err := ReadDescriptors(&buf)
	require.NoError(t, err)
	require.Equal(t, d, read)
}

func TestReadDescriptorsInvalid(t *testing.T) {
	_, err := ReadDescriptors(bytes.NewReader([]byte("NOPE0000")))
	require.Equal(t, ErrInvalidFormat, err)

	_, err = ReadDescriptors(bytes.NewReader([]byte("DS")))
	require.Error(t, err)

	var buf bytes.Buffer
	d := &Descriptors{Width: 2, Height: 2, Step: 1, Length: 4, Data: make([]float32, 16)}
	require.NoError(t, WriteDescriptors(&buf, d))
	_, err = ReadDescriptors(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	require.Error(t, err)

	testSet := []struct {
		name   string
		header []uint32
	}{
		{name: "overflowing size", header: []uint32{1, 1, 1, 0xffffffff, 0xffffffff}},
		{name: "count does not match the grid", header: []uint32{2, 2, 1, 2, 1}},
		{name: "too many values", header: []uint32{65535, 65535, 1, 200, 65535 * 65535}},
		{name: "zero step", header: []uint32{2, 2, 0, 2, 4}},
		{name: "empty image", header: []uint32{0, 2, 1, 2, 0}},
	}
	for _, test := range testSet {
		_, err = ReadDescriptors(bytes.NewReader(descriptorsHeader(t, test.header)))
		require.Equal(t, ErrInvalidFormat, err, test.name)
	}

	// Announces 800MB but ends right after the header
	_, err = ReadDescriptors(bytes.NewReader(descriptorsHeader(t, []uint32{1000, 1000, 1, 200, 1000000})))
	require.Error(t, err)
	require.NotEqual(t, ErrInvalidFormat, err)
}

func descriptorsHeader(t *testing.T, header []uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("DSY1")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, header))
	return buf.Bytes()
}

func TestDescriptorsAtBounds(t *testing.T) {
	d := &Descriptors{Width: 5, Height: 3, Step: 2, Length: 1, Data: []float32{0, 1, 2, 3, 4, 5}}
	require.Equal(t, []float32{2}, d.At(4, 0))
	require.Equal(t, []float32{5}, d.At(4, 2))
	require.Nil(t, d.At(5, 0))
	require.Nil(t, d.At(0, 3))
	require.Nil(t, d.At(-1, 0))
	require.Nil(t, d.At(0, -1))
}

func TestDecode(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	src.SetGray(0, 0, color.Gray{Y: 0})
	src.SetGray(1, 0, color.Gray{Y: 255})
	src.SetGray(2, 1, color.Gray{Y: 51})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 3, img.Width)
	require.Equal(t, 2, img.Height)
	require.InDelta(t, 0, img.Pix[0], 1e-6)
	require.InDelta(t, 1, img.Pix[1], 1e-6)
	require.InDelta(t, 0.2, img.Pix[5], 1e-6)

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
}
