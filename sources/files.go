package sources

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pogilon/DAISY-BP/daisy"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

//FileSource reads image files in the order given
type FileSource struct {
	paths []string
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

//NewDirSource returns a FileSource for the images in dir, sorted by name.
// Subdirectories and files with other extensions are skipped.
func NewDirSource(dir string) (*FileSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapErr("read dir", err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return NewFileSource(paths...), nil
}

//Next decodes the next file
func (s *FileSource) Next(ctx context.Context) (*Frame, error) {
	if len(s.paths) == 0 {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.paths[0]
	s.paths = s.paths[1:]

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := daisy.Decode(f)
	if err != nil {
		return nil, wrapErr(path, err)
	}
	return &Frame{Name: frameName(path), Image: img}, nil
}

// frameName strips directory and extension
func frameName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
