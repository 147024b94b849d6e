package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vitaria/catalog/internal/media"
)

// LocalFile is a file picked for upload. Open is called once per attempt, so
// a failed transfer can be retried from the start.
type LocalFile interface {
	Descriptor() media.FileDescriptor
	Open() (io.ReadCloser, error)
}

// DiskFile is a LocalFile backed by a path on disk.
type DiskFile struct {
	path string
	desc media.FileDescriptor
}

// OpenDisk stats path and sniffs its content type. The file is not kept
// open.
func OpenDisk(path string) (*DiskFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &DiskFile{
		path: path,
		desc: media.FileDescriptor{
			Filename:    filepath.Base(path),
			ContentType: sniff(f, path),
			Size:        info.Size(),
		},
	}, nil
}

func (d *DiskFile) Descriptor() media.FileDescriptor { return d.desc }

func (d *DiskFile) Open() (io.ReadCloser, error) { return os.Open(d.path) }

func (d *DiskFile) Path() string { return d.path }

// sniff prefers the file's magic bytes and falls back to the extension.
func sniff(r io.Reader, path string) string {
	head := make([]byte, 512)
	n, _ := io.ReadFull(r, head)
	if ct := http.DetectContentType(head[:n]); ct != "application/octet-stream" {
		mt, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mt
		}
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

// Sender presigns and transfers one file, returning the key it was stored
// under.
type Sender interface {
	Send(ctx context.Context, file LocalFile, onProgress ProgressFunc) (string, error)
}

type SenderFunc func(ctx context.Context, file LocalFile, onProgress ProgressFunc) (string, error)

func (f SenderFunc) Send(ctx context.Context, file LocalFile, onProgress ProgressFunc) (string, error) {
	return f(ctx, file, onProgress)
}
