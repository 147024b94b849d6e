// Package upload transfers file bytes to presigned PUT URLs.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/vitaria/catalog/internal/media"
)

// ErrCredentialExpired is wrapped in the UploadError returned when a
// transfer outlives its write credential.
var ErrCredentialExpired = errors.New("upload credential expired")

// ProgressFunc receives a non-decreasing percentage. 100 is reported only
// after the store confirmed the write.
type ProgressFunc func(percent int)

// Executor performs PUT requests against write credentials. It touches no
// queue or database state.
type Executor struct {
	client *http.Client
}

// NewExecutor returns an Executor using client, or a default client when
// nil. The per-transfer deadline comes from the credential, not from the
// client's Timeout.
func NewExecutor(client *http.Client) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	return &Executor{client: client}
}

// Upload streams file to cred.UploadURL. Every failure, including an
// expired credential, is returned as *media.UploadError.
func (e *Executor) Upload(ctx context.Context, cred media.UploadCredential, file LocalFile, onProgress ProgressFunc) error {
	desc := file.Descriptor()
	fail := func(status int, err error) error {
		return &media.UploadError{File: desc.Filename, StatusCode: status, Err: err}
	}

	if !cred.UploadExpiresAt.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, cred.UploadExpiresAt)
		defer cancel()
	}

	rc, err := file.Open()
	if err != nil {
		return fail(0, err)
	}
	defer rc.Close()

	pr := &progressReader{r: rc, total: desc.Size, report: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, cred.UploadURL, pr)
	if err != nil {
		return fail(0, err)
	}
	req.ContentLength = desc.Size
	contentType := cred.ContentType
	if contentType == "" {
		contentType = desc.ContentType
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fail(0, ErrCredentialExpired)
		}
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fail(resp.StatusCode, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b))))
	}

	pr.done()
	return nil
}

// progressReader reports read progress capped at 99 until done is called.
type progressReader struct {
	r      io.Reader
	total  int64
	report ProgressFunc

	mu   sync.Mutex
	read int64
	last int
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.mu.Lock()
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		p.mu.Unlock()
		p.emit(min(pct, 99))
	}
	return n, err
}

func (p *progressReader) done() { p.emit(100) }

// emit reports under the lock so callbacks observe values in order.
func (p *progressReader) emit(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct <= p.last {
		return
	}
	p.last = pct
	if p.report != nil {
		p.report(pct)
	}
}
