package termination

import (
	"log"

	"github.com/NirjharDeb/treedone/pgas"
)

// Engine drives global termination detection from one PE's flow.
// Methods are called in protocol order — Publish, DriveFanIn, Broadcast,
// WaitGate — or all at once via Detect. An Engine is bound to a single PE
// and is not safe for concurrent use.
type Engine interface {
	// Publish announces this PE's local completion to its leaf group.
	// It must be called at most once per run.
	Publish() error

	// DriveFanIn performs this PE's share of the upward fan-in: group
	// owners wait for their children and notify their parents (static
	// variants), or elected leaders climb the promotion chain (dynamic).
	// PEs with no upward role return immediately.
	DriveFanIn() error

	// Broadcast performs this PE's share of the downward fan-out: the root
	// seeds the terminate token, owners forward it to their child groups,
	// and leaf owners open their members' gates.
	Broadcast() error

	// WaitGate blocks until this PE's own termination gate opens.
	WaitGate() error

	// Detect runs the whole protocol: publish, fan-in, fan-out, gate, and
	// exit coordination. The returned Aggregate is non-nil only at the
	// root. Under ExitGlobal, non-root PEs return the substrate's job-exit
	// error instead of observing the gate.
	Detect() (*Aggregate, error)

	// Topology returns the planned group hierarchy for this job.
	Topology() Topology
}

// Aggregate is the root's summary of per-PE elapsed times, in milliseconds
// from the start barrier to each PE's local completion.
type Aggregate struct {
	NPes   int
	MinMS  float64
	MeanMS float64
	MaxMS  float64
}

// New plans the topology, collectively allocates the symmetric protocol
// state, and returns the engine variant selected by opt. Every PE of the job
// must call New with identical Options; the call contains a collective
// barrier and returns only once all PEs have allocated their state.
func New(pe pgas.PE, opt Options) (Engine, error) {
	if pe == nil {
		return nil, ErrNilSubstrate
	}
	opt = opt.withDefaults(pe.NPes())

	topo := planTopology(pe.NPes(), opt.LeafGroupSize, opt.BranchFactor)

	st, err := newState(pe, topo, opt.Variant)
	if err != nil {
		return nil, err
	}

	base := engineBase{
		pe:    pe,
		st:    st,
		opt:   opt,
		topo:  topo,
		start: opt.now(),
	}
	if opt.Debug && base.logger() != nil && pe.Me() == topo.Root() {
		base.logger().Printf("planner: npes=%d leaf=%d branch=%d levels=%d groups0=%d",
			topo.NPes, topo.Leaf, topo.Branch, topo.Levels, topo.Groups[0])
	}

	if opt.Variant == VariantDynamic {
		return &dynamicEngine{engineBase: base}, nil
	}
	return &staticEngine{engineBase: base}, nil
}

// engineBase carries the pieces every variant shares: the substrate handle,
// the symmetric state, and the fan-out/gate/exit machinery.
type engineBase struct {
	pe   pgas.PE
	st   *state
	opt  Options
	topo Topology

	start     int64 // UnixNano at the post-allocation barrier
	published bool
}

// Topology returns the planned group hierarchy.
func (e *engineBase) Topology() Topology { return e.topo }

func (e *engineBase) logger() Logger {
	if e.opt.Logger != nil {
		return e.opt.Logger
	}
	if e.opt.Debug {
		return log.Default()
	}
	return nil
}

func (e *engineBase) debugf(format string, v ...any) {
	if e.opt.Debug {
		if l := e.logger(); l != nil {
			l.Printf(format, v...)
		}
	}
}

// markLocalDone records this PE's elapsed time and local completion flag.
// Both slots live on the calling PE and have no remote readers before the
// values are in place, so no quiet is needed here.
func (e *engineBase) markLocalDone() error {
	me := e.pe.Me()
	elapsedMS := float64(e.opt.now()-e.start) / 1e6
	if err := e.pe.PutFloat(e.st.elapsed, 0, elapsedMS, me); err != nil {
		return err
	}
	return e.pe.Put(e.st.localDone, 0, done, me)
}

// runDetect is the protocol order shared by all variants; e's overrides
// supply the variant-specific upward path.
func runDetect(e Engine, base *engineBase) (*Aggregate, error) {
	if err := e.Publish(); err != nil {
		return nil, err
	}
	if err := e.DriveFanIn(); err != nil {
		return nil, err
	}
	if base.opt.Exit == ExitGlobal {
		return base.exitGlobal()
	}
	if err := e.Broadcast(); err != nil {
		return nil, err
	}
	if err := e.WaitGate(); err != nil {
		return nil, err
	}
	return base.coordinateExit()
}
