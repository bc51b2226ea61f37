//Package sources provides the images descriptors are computed for, from files, directories or http servers
package sources

import (
	"context"
	"io"

	"github.com/pogilon/DAISY-BP/daisy"
	"golang.org/x/xerrors"
)

//Frame is a decoded image together with the name results are stored under
type Frame struct {
	Name  string
	Image *daisy.Image
}

//Source supplies frames to compute descriptors for
type Source interface {
	//Next returns the next frame, io.EOF when the source is exhausted
	Next(ctx context.Context) (*Frame, error)
}

//Feed pushes the frames of src as jobs until it is exhausted or ctx is done, jobs is closed afterwards.
// A frame that can not be read stops the feed and its error is returned.
func Feed(ctx context.Context, src Source, jobs chan<- *daisy.Job) error {
	defer close(jobs)
	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case jobs <- &daisy.Job{Name: frame.Name, Image: frame.Image}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

//Chain returns a source that exhausts the given sources one after the other
func Chain(sources ...Source) Source {
	return &chain{sources: sources}
}

type chain struct {
	sources []Source
}

func (c *chain) Next(ctx context.Context) (*Frame, error) {
	for len(c.sources) > 0 {
		frame, err := c.sources[0].Next(ctx)
		if err != io.EOF {
			return frame, err
		}
		c.sources = c.sources[1:]
	}
	return nil, io.EOF
}

func wrapErr(msg string, err error) error {
	return xerrors.Errorf("%s: %w", msg, err)
}
