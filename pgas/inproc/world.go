// Package inproc hosts a PGAS job inside a single process: one goroutine per
// PE, symmetric segments backed by atomics, and futex-style local waits.
//
// Semantics are deliberately stricter than a network substrate requires:
// puts and remote atomics complete at their target immediately, so Quiet is
// a pure fence. Code that is correct on any substrate honoring the pgas
// contracts is correct here; the reverse does not hold, since a missing
// Quiet goes unnoticed when every put completes eagerly.
package inproc

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/NirjharDeb/treedone/pgas"
)

// World is an in-process PGAS job with a static set of PEs.
// Create one with New, then drive it with Run.
type World struct {
	npes int

	// Collective allocation log. PEs append on first arrival and verify on
	// replay; any divergence in order, kind, or size is ErrAllocMismatch.
	allocMu sync.Mutex
	allocs  []*segment

	// One notifier per PE: writers targeting PE t broadcast t's cond so its
	// local WaitUntil can re-check the predicate.
	notif []*notifier

	bar barrier

	// Job exit latch. The first GlobalExit wins; everything blocked is woken
	// and every later primitive fails with pgas.ErrJobExit.
	exitMu     sync.Mutex
	exited     bool
	exitStatus int
}

// New creates a world of npes processing elements. npes must be >= 1.
func New(npes int) (*World, error) {
	if npes < 1 {
		return nil, fmt.Errorf("inproc: npes must be >= 1, got %d", npes)
	}
	w := &World{
		npes:  npes,
		notif: make([]*notifier, npes),
	}
	for i := range w.notif {
		w.notif[i] = newNotifier()
	}
	w.bar.init(npes, w)
	return w, nil
}

// NPes returns the number of PEs in the world.
func (w *World) NPes() int { return w.npes }

// Run executes fn once per PE, each on its own goroutine, and blocks until
// every PE has returned. It returns the job exit status: 0 when all PEs
// return nil, or the status latched by the first GlobalExit. PE errors other
// than job exit abort the world (so no sibling blocks forever) and are
// returned to the caller.
func (w *World) Run(fn func(pe pgas.PE) error) (int, error) {
	var g errgroup.Group
	for i := 0; i < w.npes; i++ {
		p := &procElem{world: w, id: i}
		g.Go(func() error {
			err := fn(p)
			if err != nil && !pgas.IsJobExit(err) {
				// A PE failed outside the exit protocol. Tear the job down
				// so PEs blocked on this one do not hang, and surface the
				// original error.
				w.globalExit(1)
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	w.exitMu.Lock()
	status := 0
	if w.exited {
		status = w.exitStatus
	}
	w.exitMu.Unlock()
	return status, err
}

// globalExit latches status (first caller wins) and wakes everything.
func (w *World) globalExit(status int) {
	w.exitMu.Lock()
	if w.exited {
		w.exitMu.Unlock()
		return
	}
	w.exited = true
	w.exitStatus = status
	w.exitMu.Unlock()

	for _, n := range w.notif {
		n.broadcast()
	}
	w.bar.wake()
}

// hasExited reports whether the job has been torn down.
func (w *World) hasExited() bool {
	w.exitMu.Lock()
	defer w.exitMu.Unlock()
	return w.exited
}

// checkLive returns ErrJobExit once the job has been torn down.
func (w *World) checkLive() error {
	if w.hasExited() {
		return pgas.ErrJobExit
	}
	return nil
}

// alloc registers a collective allocation step for the PE at cursor position
// cur. The first PE to reach a step creates the segment; later PEs must
// request the same kind and size.
func (w *World) alloc(cur int, kind segKind, n int) (*segment, error) {
	if n < 0 {
		return nil, fmt.Errorf("inproc: negative segment size %d: %w", n, pgas.ErrBadIndex)
	}
	w.allocMu.Lock()
	defer w.allocMu.Unlock()

	switch {
	case cur < len(w.allocs):
		s := w.allocs[cur]
		if s.kind != kind || s.size != n {
			return nil, fmt.Errorf("inproc: step %d wants %v[%d], logged %v[%d]: %w",
				cur, kind, n, s.kind, s.size, pgas.ErrAllocMismatch)
		}
		return s, nil
	case cur == len(w.allocs):
		s := newSegment(w, kind, w.npes, n)
		w.allocs = append(w.allocs, s)
		return s, nil
	default:
		// Cursor ran ahead of the log; only possible if a PE skipped a step.
		return nil, fmt.Errorf("inproc: step %d ahead of allocation log (%d): %w",
			cur, len(w.allocs), pgas.ErrAllocMismatch)
	}
}

// ---- generation barrier ----

// barrier is a reusable sense-free generation barrier over all PEs.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	world   *World
	parties int
	waiting int
	gen     uint64
}

func (b *barrier) init(parties int, w *World) {
	b.parties = parties
	b.world = w
	b.cond = sync.NewCond(&b.mu)
}

// await blocks until all parties arrive or the job exits.
func (b *barrier) await() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.world.hasExited() {
		return pgas.ErrJobExit
	}
	gen := b.gen
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return nil
	}
	for gen == b.gen {
		b.cond.Wait()
		if b.world.hasExited() {
			return pgas.ErrJobExit
		}
	}
	return nil
}

// wake unblocks all waiters after a job exit.
func (b *barrier) wake() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

// ---- per-PE notifier ----

// notifier wakes a PE's local waiters whenever a writer touches its memory.
type notifier struct {
	mu   sync.Mutex
	cond *sync.Cond
}

func newNotifier() *notifier {
	n := &notifier{}
	n.cond = sync.NewCond(&n.mu)
	return n
}

func (n *notifier) broadcast() {
	n.mu.Lock()
	n.cond.Broadcast()
	n.mu.Unlock()
}
