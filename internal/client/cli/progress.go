package cli

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// progress prints upload progress for one file. On a terminal the line is
// redrawn in place; otherwise a line is printed at every quarter.
type progress struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	label string
	last  int
}

func newProgress(w io.Writer, tty bool, label string) *progress {
	return &progress{w: w, tty: tty, label: label, last: -1}
}

func (p *progress) Report(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct <= p.last {
		return
	}
	if p.tty {
		fmt.Fprintf(p.w, "\r%s %3d%%", p.label, pct)
		if pct == 100 {
			fmt.Fprintln(p.w)
		}
		p.last = pct
		return
	}
	if pct/25 > p.last/25 || p.last < 0 {
		fmt.Fprintf(p.w, "%s %d%%\n", p.label, pct)
	}
	p.last = pct
}
