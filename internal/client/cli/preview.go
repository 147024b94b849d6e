package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/vitaria/catalog/internal/client/gallery"
	"github.com/vitaria/catalog/internal/client/upload"
	"github.com/vitaria/catalog/internal/media"
)

// filePreview is a copy of a queued image kept in a preview directory until
// the item leaves the queue.
type filePreview struct {
	path   string
	errOut io.Writer
}

func (p *filePreview) Release() {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(p.errOut, "remove preview %s: %v\n", p.path, err)
	}
}

// copyPreviews returns a gallery.PreviewFunc that copies each admitted file
// into dir.
func copyPreviews(dir string, errOut io.Writer) gallery.PreviewFunc {
	return func(f upload.LocalFile) (gallery.Preview, error) {
		src, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()

		dst, err := os.CreateTemp(dir, "preview-*-"+media.SanitizeFilename(f.Descriptor().Filename))
		if err != nil {
			return nil, err
		}
		p := &filePreview{path: dst.Name(), errOut: errOut}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			p.Release()
			return nil, err
		}
		if err := dst.Close(); err != nil {
			p.Release()
			return nil, err
		}
		return p, nil
	}
}
