// Package hero manages the single hero image slot of a product.
package hero

import (
	"context"
	"errors"
	"sync"

	"github.com/vitaria/catalog/internal/client/upload"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/syncx"
)

// ErrSuperseded is returned by an Upload that finished after a newer Upload
// started. Its key is retired instead of displayed.
var ErrSuperseded = errors.New("hero upload superseded")

type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// State is what the slot displays. Key is empty while an upload is in
// flight.
type State struct {
	Key      string
	Status   Status
	Progress int
	Err      string
}

// Retirer deletes keys that no longer back the slot. Keys still referenced
// by a saved row are expected to be skipped by the implementation.
type Retirer interface {
	Retire(ctx context.Context, keys ...string) error
}

type Option func(*Slot)

func WithLogger(l logging.Logger) Option { return func(s *Slot) { s.log = l } }

// WithOnChange registers a callback invoked with every new State. It runs
// with the slot locked and must not call back into the Slot.
func WithOnChange(fn func(State)) Option { return func(s *Slot) { s.onChange = fn } }

// Slot holds one hero key. Uploads may overlap; only the latest one decides
// the displayed key.
type Slot struct {
	mu       sync.Mutex
	state    State
	lastGood string
	gen      uint64

	sender   upload.Sender
	retirer  Retirer
	log      logging.Logger
	onChange func(State)
	retiring syncx.Group
}

func NewSlot(key string, sender upload.Sender, r Retirer, opts ...Option) *Slot {
	s := &Slot{
		state:    State{Key: key, Status: StatusIdle},
		lastGood: key,
		sender:   sender,
		retirer:  r,
		log:      logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "hero")
	return s
}

func (s *Slot) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Committed returns the last key confirmed by a successful upload, or the
// initial key. Unlike State().Key it is never blanked by an upload in
// flight.
func (s *Slot) Committed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGood
}

// Uploading reports whether an upload is in flight.
func (s *Slot) Uploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status == StatusUploading
}

// Clear empties the slot and retires the previous key.
func (s *Slot) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	prev := s.lastGood
	s.lastGood = ""
	s.set(State{Status: StatusIdle})
	if prev != "" {
		s.retire(ctx, prev)
	}
}

// Upload replaces the hero with file. On success the previously committed
// key is retired in the background; on failure it is displayed again.
func (s *Slot) Upload(ctx context.Context, file upload.LocalFile) (string, error) {
	if err := file.Descriptor().Validate(); err != nil {
		s.mu.Lock()
		st := s.state
		st.Status, st.Err, st.Progress = StatusError, media.Message(err), 0
		s.set(st)
		s.mu.Unlock()
		return "", err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.set(State{Status: StatusUploading, Progress: 1})
	s.mu.Unlock()

	key, err := s.sender.Send(ctx, file, func(pct int) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen && s.state.Status == StatusUploading && pct > s.state.Progress {
			st := s.state
			st.Progress = pct
			s.set(st)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		if err == nil && key != s.lastGood {
			s.retire(ctx, key)
		}
		return "", ErrSuperseded
	}
	if err != nil {
		s.log.Warn(ctx, "hero upload failed", "file", file.Descriptor().Filename, "error", err)
		s.set(State{Key: s.lastGood, Status: StatusError, Err: media.Message(err)})
		return "", err
	}

	prev := s.lastGood
	s.lastGood = key
	s.set(State{Key: key, Status: StatusDone, Progress: 100})
	if prev != "" && prev != key {
		s.retire(ctx, prev)
	}
	return key, nil
}

// Wait blocks until background retirements have finished or ctx is done.
func (s *Slot) Wait(ctx context.Context) error {
	return s.retiring.Wait(ctx)
}

func (s *Slot) set(st State) {
	s.state = st
	if s.onChange != nil {
		s.onChange(st)
	}
}

// retire deletes keys without blocking the caller. Failures are logged.
func (s *Slot) retire(ctx context.Context, keys ...string) {
	if s.retirer == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.retiring.Go(func() {
		if err := s.retirer.Retire(ctx, keys...); err != nil {
			s.log.Error(ctx, "failed to retire hero image", "keys", keys, "error", err)
		}
	})
}
