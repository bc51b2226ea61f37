package daisy

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/xerrors"
)

var descriptorsMagic = [4]byte{'D', 'S', 'Y', '1'}

// maxDescriptorValues bounds the number of values a descriptor file may announce
const maxDescriptorValues = math.MaxInt32

// readChunk is the number of values read and allocated at a time
const readChunk = 1 << 16

// ErrInvalidFormat is returned when reading something that is not a descriptor file
var ErrInvalidFormat = xerrors.New("daisy: invalid descriptor file")

//Descriptors holds the descriptors of an image, one every Step pixels, row major
type Descriptors struct {
	Width  int
	Height int
	Step   int
	Length int
	Data   []float32
}

func newDescriptors(width, height int, p Params) *Descriptors {
	cols, rows := p.DescriptorsSize(width, height)
	return &Descriptors{
		Width:  width,
		Height: height,
		Step:   p.Step,
		Length: p.DescriptorLength(),
		Data:   make([]float32, cols*rows*p.DescriptorLength()),
	}
}

//Count is the number of descriptors
func (d *Descriptors) Count() int {
	if d.Length == 0 {
		return 0
	}
	return len(d.Data) / d.Length
}

func (d *Descriptors) cols() int {
	return (d.Width + d.Step - 1) / d.Step
}

//At returns the descriptor of the grid cell containing pixel x, y.
// It returns nil unless 0 <= x < Width and 0 <= y < Height.
func (d *Descriptors) At(x, y int) []float32 {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return nil
	}
	i := ((y/d.Step)*d.cols() + x/d.Step) * d.Length
	return d.Data[i : i+d.Length]
}

//WriteDescriptors writes d in the DSY1 binary format, all values little endian
func WriteDescriptors(w io.Writer, d *Descriptors) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(descriptorsMagic[:]); err != nil {
		return err
	}
	header := []uint32{uint32(d.Width), uint32(d.Height), uint32(d.Step), uint32(d.Length), uint32(d.Count())}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, v := range d.Data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

//ReadDescriptors reads descriptors written by WriteDescriptors
func ReadDescriptors(r io.Reader) (*Descriptors, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, xerrors.Errorf("read magic: %w", err)
	}
	if magic != descriptorsMagic {
		return nil, ErrInvalidFormat
	}
	header := make([]uint32, 5)
	if err := binary.Read(br, binary.LittleEndian, header); err != nil {
		return nil, xerrors.Errorf("read header: %w", err)
	}
	width, height, step, length, count := header[0], header[1], header[2], header[3], header[4]
	if width == 0 || height == 0 || step == 0 || length == 0 {
		return nil, ErrInvalidFormat
	}
	cols := (uint64(width) + uint64(step) - 1) / uint64(step)
	rows := (uint64(height) + uint64(step) - 1) / uint64(step)
	if uint64(count) != cols*rows || uint64(count)*uint64(length) > maxDescriptorValues {
		return nil, ErrInvalidFormat
	}
	d := &Descriptors{
		Width:  int(width),
		Height: int(height),
		Step:   int(step),
		Length: int(length),
	}

	// The data grows as it is read, a truncated file does not allocate what its header claims
	remaining := int(count) * d.Length
	chunk := make([]float32, min(remaining, readChunk))
	for remaining > 0 {
		n := min(remaining, readChunk)
		if err := binary.Read(br, binary.LittleEndian, chunk[:n]); err != nil {
			return nil, xerrors.Errorf("read descriptors: %w", err)
		}
		d.Data = append(d.Data, chunk[:n]...)
		remaining -= n
	}
	return d, nil
}
