package termination

import (
	"fmt"

	"github.com/NirjharDeb/treedone/pgas"
)

// done is the distinguished "finished" marker written into mailboxes,
// tokens, and gates. Any nonzero value works; -1 keeps zero-initialized
// symmetric memory a valid "not done" state.
const done int64 = -1

// leaderUnset marks a group whose dynamic leader has not been decided.
const leaderUnset int64 = -1

// state bundles every symmetric allocation the protocol needs. It is created
// collectively by newState and owned by the PE's flow; remote PEs touch it
// only through the substrate.
//
// Mailboxes are flattened per level: slot i of group g lives at index
// g*childCap(l)+i. The level-0 storage serves double duty as both the
// per-leaf-member slots and the level-0 mailbox, so leaf fan-in and internal
// fan-in run the same code path over one allocation.
type state struct {
	topo Topology

	localDone pgas.IntSeg   // [1] written only by the owning PE
	elapsed   pgas.FloatSeg // [1] ms from start barrier to local completion

	mailboxes []pgas.IntSeg // per level: [Groups[l] * childCap(l)]
	tokens    []pgas.IntSeg // per level: [Groups[l]] downward terminate tokens
	gate      pgas.IntSeg   // [1] per-PE termination gate

	// Dynamic-leader variant only (nil otherwise).
	leafCount  pgas.IntSeg   // [Groups[0]] fetch-inc'd once per member
	childCount []pgas.IntSeg // per level >= 1: [Groups[l]]; [0] unused
	groupDone  []pgas.IntSeg // per level: [Groups[l]]
	leader     []pgas.IntSeg // per level: [Groups[l]]; leaderUnset until won

	// Exit coordination scalars, authoritative at the root.
	aggPrinted pgas.IntSeg // [1] aggregate-once flag
	rootGo     pgas.IntSeg // [1] root's release flag
	exitAcks   pgas.IntSeg // [1] non-roots ready to exit
}

// newState collectively allocates and initializes all protocol state, then
// crosses a barrier so no PE reaches for a neighbor's copy before it exists.
// Allocation failure is fatal for the whole job: the failing PE requests a
// job-wide exit with status 1 and reports the cause.
func newState(pe pgas.PE, topo Topology, variant Variant) (*state, error) {
	st := &state{topo: topo}
	err := st.allocate(pe, variant)
	if err != nil {
		pe.GlobalExit(1)
		return nil, fmt.Errorf("termination: symmetric allocation: %w", err)
	}
	if err := pe.Barrier(); err != nil {
		return nil, fmt.Errorf("termination: init barrier: %w", err)
	}
	return st, nil
}

func (st *state) allocate(pe pgas.PE, variant Variant) error {
	t := st.topo
	var err error

	if st.localDone, err = pe.AllocInts(1); err != nil {
		return err
	}
	if st.elapsed, err = pe.AllocFloats(1); err != nil {
		return err
	}
	if st.gate, err = pe.AllocInts(1); err != nil {
		return err
	}

	st.mailboxes = make([]pgas.IntSeg, t.Levels)
	st.tokens = make([]pgas.IntSeg, t.Levels)
	for l := 0; l < t.Levels; l++ {
		if st.mailboxes[l], err = pe.AllocInts(t.Groups[l] * t.childCap(l)); err != nil {
			return err
		}
		if st.tokens[l], err = pe.AllocInts(t.Groups[l]); err != nil {
			return err
		}
	}

	if variant == VariantDynamic {
		if st.leafCount, err = pe.AllocInts(t.Groups[0]); err != nil {
			return err
		}
		st.childCount = make([]pgas.IntSeg, t.Levels)
		st.groupDone = make([]pgas.IntSeg, t.Levels)
		st.leader = make([]pgas.IntSeg, t.Levels)
		for l := 0; l < t.Levels; l++ {
			if l > 0 {
				if st.childCount[l], err = pe.AllocInts(t.Groups[l]); err != nil {
					return err
				}
			}
			if st.groupDone[l], err = pe.AllocInts(t.Groups[l]); err != nil {
				return err
			}
			if st.leader[l], err = pe.AllocInts(t.Groups[l]); err != nil {
				return err
			}
			// Local preset of my own copy; remote copies get the same value
			// from their owners before the init barrier.
			for g := 0; g < t.Groups[l]; g++ {
				if err = pe.Put(st.leader[l], g, leaderUnset, pe.Me()); err != nil {
					return err
				}
			}
		}
	}

	if st.aggPrinted, err = pe.AllocInts(1); err != nil {
		return err
	}
	if st.rootGo, err = pe.AllocInts(1); err != nil {
		return err
	}
	if st.exitAcks, err = pe.AllocInts(1); err != nil {
		return err
	}
	return nil
}

// mailboxSlot returns the flattened index of slot i of group g at level l.
func (st *state) mailboxSlot(level, g, i int) int {
	return g*st.topo.childCap(level) + i
}
