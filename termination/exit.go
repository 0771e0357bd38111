package termination

import (
	"time"

	"github.com/NirjharDeb/treedone/pgas"
)

// pollPause is the backoff between remote polls of the root's release flag.
const pollPause = time.Millisecond

// coordinateExit runs the configured teardown policy after this PE's gate
// has opened. No PE may issue remote operations against a target that has
// already left; each policy orders the departures accordingly.
func (e *engineBase) coordinateExit() (*Aggregate, error) {
	root := e.topo.Root()
	me := e.pe.Me()

	switch e.opt.Exit {
	case ExitRootLast:
		if me != root {
			// Remote-poll the root's release flag; the root is still
			// issuing remote gets against our symmetric memory until it
			// flips this. A local wait would hang: the flag lives at the
			// root, not here.
			for {
				v, err := e.pe.Get(e.st.rootGo, 0, root)
				if err != nil {
					return nil, err
				}
				if v != 0 {
					break
				}
				time.Sleep(pollPause)
			}
			if _, err := e.pe.FetchInc(e.st.exitAcks, 0, root); err != nil {
				return nil, err
			}
			return nil, e.pe.Quiet()
		}
		agg, err := e.gatherAggregate()
		if err != nil {
			return nil, err
		}
		if err := e.pe.Put(e.st.rootGo, 0, 1, me); err != nil {
			return nil, err
		}
		if err := e.pe.Quiet(); err != nil {
			return nil, err
		}
		// Hold until every non-root has acknowledged, so none of them still
		// has a put or ack in flight against our symmetric memory.
		if err := e.pe.WaitUntil(e.st.exitAcks, 0, pgas.CmpGE, int64(e.topo.NPes-1)); err != nil {
			return nil, err
		}
		e.debugf("pe %d: root leaving last after %d acks", me, e.topo.NPes-1)
		return agg, nil

	default: // ExitBarrier
		var agg *Aggregate
		if me == root {
			var err error
			if agg, err = e.gatherAggregate(); err != nil {
				return nil, err
			}
		}
		if err := e.pe.Barrier(); err != nil {
			return nil, err
		}
		return agg, nil
	}
}

// exitGlobal implements the root-process-exit policy: the root proves global
// completion through fan-in alone and tears the whole job down. Non-roots
// never observe termination; their pending waits fail with the substrate's
// job-exit error, which callers should treat as a clean shutdown.
func (e *engineBase) exitGlobal() (*Aggregate, error) {
	if e.pe.Me() == e.topo.Root() {
		if e.opt.Variant == VariantDynamic {
			// Static fan-in ends at the root with proof in hand; the dynamic
			// walk ends at whichever PE finished last. Its top token is the
			// root's proof of global completion.
			top := e.topo.Levels - 1
			if err := e.pe.WaitUntil(e.st.tokens[top], 0, pgas.CmpEQ, done); err != nil {
				return nil, err
			}
		}
		agg, err := e.gatherAggregate()
		if err != nil {
			return nil, err
		}
		e.pe.GlobalExit(0)
		return agg, nil
	}
	if err := e.pe.WaitUntil(e.st.gate, 0, pgas.CmpEQ, done); err != nil {
		return nil, err
	}
	return nil, nil
}

// gatherAggregate pulls every PE's elapsed milliseconds and reduces to
// min/mean/max. Called at the root only, after completion of all PEs is
// proven (each PE wrote its elapsed slot before publishing). The summary
// line is emitted at most once per run, guarded by the aggPrinted flag.
func (e *engineBase) gatherAggregate() (*Aggregate, error) {
	n := e.topo.NPes
	agg := &Aggregate{NPes: n}

	sum := 0.0
	for p := 0; p < n; p++ {
		v, err := e.pe.GetFloat(e.st.elapsed, 0, p)
		if err != nil {
			return nil, err
		}
		if p == 0 || v < agg.MinMS {
			agg.MinMS = v
		}
		if p == 0 || v > agg.MaxMS {
			agg.MaxMS = v
		}
		sum += v
	}
	agg.MeanMS = sum / float64(n)

	if l := e.logger(); l != nil {
		prior, err := e.pe.CompareSwap(e.st.aggPrinted, 0, 0, 1, e.pe.Me())
		if err != nil {
			return nil, err
		}
		if prior == 0 {
			l.Printf("aggregated elapsed across %d PEs: min=%.3f ms avg=%.3f ms max=%.3f ms",
				n, agg.MinMS, agg.MeanMS, agg.MaxMS)
		}
	}
	return agg, nil
}
