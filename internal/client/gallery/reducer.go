// Package gallery implements the ordered gallery key list of one product and
// the bounded upload queue that feeds it, one transfer at a time.
package gallery

import (
	"sync"

	"github.com/vitaria/catalog/internal/client/upload"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusError     Status = "error"
)

// Preview is a locally held resource rendered for a queued file.
type Preview interface {
	Release()
}

// handle releases its Preview at most once.
type handle struct {
	once    sync.Once
	preview Preview
}

func (h *handle) release() {
	if h == nil || h.preview == nil {
		return
	}
	h.once.Do(h.preview.Release)
}

// Item is one queued local file. Items never carry a "done" state: a
// successful upload removes the item and appends its key to the gallery.
type Item struct {
	ID       string
	Filename string
	Progress int
	Status   Status
	Err      string

	file    upload.LocalFile
	preview *handle
	attempt int
}

// Action is one of AddItems, RemoveItem, SetStatus, SetProgress and
// ResetErrors.
type Action interface {
	isAction()
}

// AddItems appends items and truncates the queue to Max entries.
type AddItems struct {
	Items []Item
	Max   int
}

type RemoveItem struct {
	ID string
}

type SetStatus struct {
	ID     string
	Status Status
	Err    string
}

type SetProgress struct {
	ID       string
	Progress int
}

// ResetErrors moves every failed item back to queued.
type ResetErrors struct{}

func (AddItems) isAction()    {}
func (RemoveItem) isAction()  {}
func (SetStatus) isAction()   {}
func (SetProgress) isAction() {}
func (ResetErrors) isAction() {}

// Reduce returns the queue after applying a. It never modifies items.
// Entering StatusUploading starts a new attempt, so results of an older
// attempt can be recognised as stale.
func Reduce(items []Item, a Action) []Item {
	switch a := a.(type) {
	case AddItems:
		next := append(clone(items), a.Items...)
		if a.Max >= 0 && len(next) > a.Max {
			next = next[:a.Max]
		}
		return next
	case RemoveItem:
		next := make([]Item, 0, len(items))
		for _, it := range items {
			if it.ID != a.ID {
				next = append(next, it)
			}
		}
		return next
	case SetStatus:
		return update(items, a.ID, func(it *Item) {
			if a.Status == StatusUploading && it.Status != StatusUploading {
				it.attempt++
			}
			it.Status = a.Status
			it.Err = a.Err
		})
	case SetProgress:
		return update(items, a.ID, func(it *Item) {
			it.Progress = max(0, min(a.Progress, 100))
		})
	case ResetErrors:
		next := clone(items)
		for i := range next {
			if next[i].Status == StatusError {
				next[i].Status = StatusQueued
				next[i].Err = ""
				next[i].Progress = 0
			}
		}
		return next
	default:
		return items
	}
}

func update(items []Item, id string, fn func(*Item)) []Item {
	next := clone(items)
	for i := range next {
		if next[i].ID == id {
			fn(&next[i])
		}
	}
	return next
}

func clone(items []Item) []Item {
	return append(make([]Item, 0, len(items)), items...)
}

// find returns the item with id and whether it exists.
func find(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
