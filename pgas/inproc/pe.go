package inproc

import (
	"fmt"

	"github.com/NirjharDeb/treedone/pgas"
)

// procElem is one processing element's view of the world.
// It is handed to exactly one goroutine by World.Run and, per the pgas
// contract, is not safe for concurrent use.
type procElem struct {
	world  *World
	id     int
	cursor int // position in the collective allocation log
}

var _ pgas.PE = (*procElem)(nil)

// Me returns this PE's id.
func (p *procElem) Me() int { return p.id }

// NPes returns the job size.
func (p *procElem) NPes() int { return p.world.npes }

// AllocInts collectively allocates a zero-initialized int64 segment.
func (p *procElem) AllocInts(n int) (pgas.IntSeg, error) {
	if err := p.world.checkLive(); err != nil {
		return nil, err
	}
	s, err := p.world.alloc(p.cursor, kindInt, n)
	if err != nil {
		return nil, err
	}
	p.cursor++
	return s, nil
}

// AllocFloats collectively allocates a zero-initialized float64 segment.
func (p *procElem) AllocFloats(n int) (pgas.FloatSeg, error) {
	if err := p.world.checkLive(); err != nil {
		return nil, err
	}
	s, err := p.world.alloc(p.cursor, kindFloat, n)
	if err != nil {
		return nil, err
	}
	p.cursor++
	return s, nil
}

// Put writes val into slot idx of seg at pe. In this substrate the write is
// remotely complete before Put returns; Quiet remains a no-op fence.
func (p *procElem) Put(seg pgas.IntSeg, idx int, val int64, pe int) error {
	s, err := p.intSeg(seg, idx, pe)
	if err != nil {
		return err
	}
	s.storeInt(pe, idx, val)
	return nil
}

// Get reads slot idx of seg at pe.
func (p *procElem) Get(seg pgas.IntSeg, idx int, pe int) (int64, error) {
	s, err := p.intSeg(seg, idx, pe)
	if err != nil {
		return 0, err
	}
	return s.loadInt(pe, idx), nil
}

// PutFloat writes val into slot idx of seg at pe.
func (p *procElem) PutFloat(seg pgas.FloatSeg, idx int, val float64, pe int) error {
	s, err := p.floatSeg(seg, idx, pe)
	if err != nil {
		return err
	}
	s.storeFloat(pe, idx, val)
	return nil
}

// GetFloat reads slot idx of seg at pe.
func (p *procElem) GetFloat(seg pgas.FloatSeg, idx int, pe int) (float64, error) {
	s, err := p.floatSeg(seg, idx, pe)
	if err != nil {
		return 0, err
	}
	return s.loadFloat(pe, idx), nil
}

// WaitUntil blocks until this PE's own slot satisfies the predicate.
// Wakeups come from writers targeting this PE; the predicate is re-checked
// under the notifier lock, so a store-then-broadcast writer cannot be missed.
func (p *procElem) WaitUntil(seg pgas.IntSeg, idx int, cmp pgas.Cmp, val int64) error {
	s, err := p.intSeg(seg, idx, p.id)
	if err != nil {
		return err
	}
	n := p.world.notif[p.id]
	n.mu.Lock()
	defer n.mu.Unlock()
	for {
		if p.world.hasExited() {
			return pgas.ErrJobExit
		}
		if cmp.Satisfied(s.loadInt(p.id, idx), val) {
			return nil
		}
		n.cond.Wait()
	}
}

// CompareSwap atomically replaces expected with desired at pe, returning the
// prior value.
func (p *procElem) CompareSwap(seg pgas.IntSeg, idx int, expected, desired int64, pe int) (int64, error) {
	s, err := p.intSeg(seg, idx, pe)
	if err != nil {
		return 0, err
	}
	return s.casInt(pe, idx, expected, desired), nil
}

// FetchInc atomically increments the slot at pe, returning the prior value.
func (p *procElem) FetchInc(seg pgas.IntSeg, idx int, pe int) (int64, error) {
	s, err := p.intSeg(seg, idx, pe)
	if err != nil {
		return 0, err
	}
	return s.fetchIncInt(pe, idx), nil
}

// Quiet fences previously issued puts. Writes complete eagerly here, so the
// only work left is the liveness check.
func (p *procElem) Quiet() error {
	return p.world.checkLive()
}

// Barrier blocks until every PE has arrived.
func (p *procElem) Barrier() error {
	return p.world.bar.await()
}

// GlobalExit latches the job status and wakes every blocked primitive.
func (p *procElem) GlobalExit(status int) {
	p.world.globalExit(status)
}

// ---- operand validation ----

func (p *procElem) intSeg(seg pgas.IntSeg, idx, pe int) (*segment, error) {
	if err := p.world.checkLive(); err != nil {
		return nil, err
	}
	s, ok := seg.(*segment)
	if !ok || s.world != p.world || s.kind != kindInt {
		return nil, fmt.Errorf("inproc: foreign int segment %T: %w", seg, pgas.ErrBadIndex)
	}
	return s, p.checkAddr(s, idx, pe)
}

func (p *procElem) floatSeg(seg pgas.FloatSeg, idx, pe int) (*segment, error) {
	if err := p.world.checkLive(); err != nil {
		return nil, err
	}
	s, ok := seg.(*segment)
	if !ok || s.world != p.world || s.kind != kindFloat {
		return nil, fmt.Errorf("inproc: foreign float segment %T: %w", seg, pgas.ErrBadIndex)
	}
	return s, p.checkAddr(s, idx, pe)
}

func (p *procElem) checkAddr(s *segment, idx, pe int) error {
	if pe < 0 || pe >= p.world.npes {
		return fmt.Errorf("inproc: pe %d of %d: %w", pe, p.world.npes, pgas.ErrBadPE)
	}
	if idx < 0 || idx >= s.size {
		return fmt.Errorf("inproc: slot %d of %d: %w", idx, s.size, pgas.ErrBadIndex)
	}
	return nil
}
