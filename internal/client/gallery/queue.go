package gallery

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/vitaria/catalog/internal/client/upload"
	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
)

// PreviewFunc acquires the preview of a newly admitted file.
type PreviewFunc func(upload.LocalFile) (Preview, error)

// Snapshot is a copy of the queue state.
type Snapshot struct {
	Keys  []string
	Items []Item
}

type Option func(*Queue)

// WithPreview sets how previews are acquired. Without it items carry none.
func WithPreview(fn PreviewFunc) Option { return func(q *Queue) { q.preview = fn } }

// WithOnChange registers a callback invoked after every state change. It
// runs with the queue locked and must not call back into the Queue.
func WithOnChange(fn func(Snapshot)) Option { return func(q *Queue) { q.onChange = fn } }

func WithLogger(l logging.Logger) Option { return func(q *Queue) { q.log = l } }

// Queue owns the gallery key list and the uploads feeding it. Exactly one
// item transfers at a time, in admission order.
type Queue struct {
	mu      sync.Mutex
	keys    []string
	items   []Item
	pumping bool
	idle    chan struct{}
	closed  bool

	sender   upload.Sender
	preview  PreviewFunc
	onChange func(Snapshot)
	log      logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a queue whose gallery starts as keys. Transfers run under a
// context derived from ctx; Close cancels it.
func New(ctx context.Context, sender upload.Sender, keys []string, opts ...Option) *Queue {
	q := &Queue{
		keys:   media.CompactKeys(keys...),
		sender: sender,
		log:    logging.Nop(),
		idle:   closedChan(),
	}
	for _, o := range opts {
		o(q)
	}
	q.log = q.log.With("module", "gallery")
	q.ctx, q.cancel = context.WithCancel(ctx)
	return q
}

// AddFiles validates every file independently and queues the valid ones.
// Files that would grow the upload queue past media.MaxGalleryImages are
// dropped without error; saved keys do not count. The returned error lists
// only the invalid files.
func (q *Queue) AddFiles(files ...upload.LocalFile) error {
	var (
		valid   []upload.LocalFile
		invalid media.ValidationErrors
	)
	for _, f := range files {
		if err := f.Descriptor().Validate(); err != nil {
			invalid = append(invalid, err.(*media.ValidationError))
			continue
		}
		valid = append(valid, f)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return common.ErrQueueClosed
	}

	room := media.MaxGalleryImages - len(q.items)
	if room < len(valid) {
		valid = valid[:max(room, 0)]
	}

	added := make([]Item, 0, len(valid))
	for _, f := range valid {
		name := f.Descriptor().Filename
		it := Item{ID: uuid.NewString(), Filename: name, Status: StatusQueued, file: f}
		if q.preview != nil {
			p, err := q.preview(f)
			if err != nil {
				invalid = append(invalid, &media.ValidationError{
					File: name, Constraint: media.ConstraintFilename, Message: fmt.Sprintf("cannot read file: %v", err),
				})
				continue
			}
			it.preview = &handle{preview: p}
		}
		added = append(added, it)
	}
	if len(added) > 0 {
		q.dispatch(AddItems{Items: added, Max: media.MaxGalleryImages})
		q.startPump()
	}

	if len(invalid) > 0 {
		return invalid
	}
	return nil
}

// RetryFailed re-queues every failed item. It is a no-op when none failed.
func (q *Queue) RetryFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, it := range q.items {
		if it.Status == StatusError {
			n++
		}
	}
	if n == 0 || q.closed {
		return 0
	}
	q.dispatch(ResetErrors{})
	q.startPump()
	return n
}

// RemoveUpload drops a queued or failed item and releases its preview.
// An item that is currently uploading cannot be removed.
func (q *Queue) RemoveUpload(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := find(q.items, id)
	if !ok {
		return common.ErrorNotFound
	}
	if it.Status == StatusUploading {
		return common.ErrUploadInFlight
	}
	q.dispatch(RemoveItem{ID: id})
	it.preview.release()
	return nil
}

// RemoveKey drops key from the gallery. It reports whether key was present.
func (q *Queue) RemoveKey(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := slices.Index(q.keys, key)
	if i < 0 {
		return false
	}
	q.keys = slices.Delete(slices.Clone(q.keys), i, i+1)
	q.notify()
	return true
}

// Reorder moves the key at from to index to.
func (q *Queue) Reorder(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.keys)
	if from < 0 || from >= n || to < 0 || to >= n {
		return &media.ValidationError{Constraint: media.ConstraintKey, Message: fmt.Sprintf("position out of range (gallery has %d images)", n)}
	}
	if from == to {
		return nil
	}
	q.keys = move(q.keys, from, to)
	q.notify()
	return nil
}

func (q *Queue) Keys() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.keys)
}

func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

// Busy reports whether an item is queued or uploading.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pumping
}

// Wait blocks until no item is queued or uploading, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the transfer in flight, waits for the scheduler to exit and
// releases every remaining preview. Later AddFiles calls fail with
// common.ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		it.preview.release()
	}
	q.items = nil
	q.notify()
}

// startPump starts the scheduler unless it is already running. Callers
// hold q.mu.
func (q *Queue) startPump() {
	if q.pumping || q.closed {
		return
	}
	q.pumping = true
	q.idle = make(chan struct{})
	q.wg.Add(1)
	go q.pump()
}

func (q *Queue) pump() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		next, ok := q.nextQueued()
		if !ok || q.closed {
			q.pumping = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		q.dispatch(SetStatus{ID: next.ID, Status: StatusUploading})
		q.dispatch(SetProgress{ID: next.ID, Progress: 1})
		started, _ := find(q.items, next.ID)
		q.mu.Unlock()

		key, err := q.sender.Send(q.ctx, next.file, func(pct int) {
			q.mu.Lock()
			defer q.mu.Unlock()
			if q.current(started) {
				q.dispatch(SetProgress{ID: started.ID, Progress: pct})
			}
		})

		q.mu.Lock()
		q.settle(started, key, err)
		q.mu.Unlock()
	}
}

// settle applies a finished transfer. Results for items that were removed
// or restarted meanwhile are dropped.
func (q *Queue) settle(started Item, key string, err error) {
	if !q.current(started) {
		q.log.Debug(q.ctx, "dropping stale upload result", "item", started.ID, "key", key)
		return
	}
	if err != nil {
		q.log.Warn(q.ctx, "gallery upload failed", "file", started.Filename, "error", err)
		q.dispatch(SetStatus{ID: started.ID, Status: StatusError, Err: media.Message(err)})
		return
	}
	if !slices.Contains(q.keys, key) {
		q.keys = append(slices.Clone(q.keys), key)
	}
	q.dispatch(RemoveItem{ID: started.ID})
	started.preview.release()
}

// current reports whether started is still the live attempt of its item.
func (q *Queue) current(started Item) bool {
	it, ok := find(q.items, started.ID)
	return ok && it.Status == StatusUploading && it.attempt == started.attempt
}

func (q *Queue) nextQueued() (Item, bool) {
	for _, it := range q.items {
		if it.Status == StatusQueued {
			return it, true
		}
	}
	return Item{}, false
}

func (q *Queue) dispatch(a Action) {
	q.items = Reduce(q.items, a)
	q.notify()
}

func (q *Queue) notify() {
	if q.onChange != nil {
		q.onChange(q.snapshot())
	}
}

func (q *Queue) snapshot() Snapshot {
	return Snapshot{Keys: slices.Clone(q.keys), Items: clone(q.items)}
}

func move(keys []string, from, to int) []string {
	out := slices.Clone(keys)
	k := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, k)
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
