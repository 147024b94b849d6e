// Package syncx holds small concurrency helpers shared by the client.
package syncx

import (
	"context"
	"sync"
)

// Group runs background goroutines and waits for them. Unlike
// sync.WaitGroup, Go and Wait may be called concurrently: Wait returns once
// the group is idle, including goroutines started while it waited.
type Group struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

// Go runs fn in a new goroutine tracked by g.
func (g *Group) Go(fn func()) {
	g.mu.Lock()
	if g.n == 0 {
		g.idle = make(chan struct{})
	}
	g.n++
	g.mu.Unlock()

	go func() {
		defer g.done()
		fn()
	}()
}

func (g *Group) done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n--
	if g.n == 0 {
		close(g.idle)
	}
}

// Wait blocks until no goroutine of g is running or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if g.n == 0 {
			g.mu.Unlock()
			return nil
		}
		idle := g.idle
		g.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
