package termination

import "github.com/NirjharDeb/treedone/pgas"

// staticEngine is the statically-owned protocol family: STAR, H-STAR, and
// the binary tree are all this engine over different planner branchings.
//
// Upward: each PE puts its done marker into its leaf group's mailbox at the
// group owner; owners wait locally for their full child set and notify the
// parent owner one level up, until the root has proof of global completion.
// Downward: the root seeds the terminate token; owners forward it level by
// level; leaf owners open every member's gate.
type staticEngine struct {
	engineBase
}

var _ Engine = (*staticEngine)(nil)

// Publish writes this PE's done marker into its leaf slot at the leaf owner.
func (e *staticEngine) Publish() error {
	if e.published {
		return ErrRepublished
	}
	e.published = true

	if err := e.markLocalDone(); err != nil {
		return err
	}

	me := e.pe.Me()
	g0 := e.topo.GroupOf(0, me)
	idx0 := me % e.topo.Leaf
	owner := e.topo.Owner(0, g0)

	if err := e.pe.Put(e.st.mailboxes[0], e.st.mailboxSlot(0, g0, idx0), done, owner); err != nil {
		return err
	}
	if err := e.pe.Quiet(); err != nil {
		return err
	}
	e.opt.Metrics.Publish()
	e.debugf("pe %d: published into leaf group %d slot %d at owner %d", me, g0, idx0, owner)
	return nil
}

// DriveFanIn waits out this PE's owned groups bottom-up and notifies each
// parent owner. Ownership is nested: an owner at level l owns its group at
// every level below, and a non-owner at level l owns nothing above, so the
// loop stops at the first level this PE does not own.
func (e *staticEngine) DriveFanIn() error {
	me := e.pe.Me()
	for l := 0; l < e.topo.Levels; l++ {
		if !e.topo.IsOwner(l, me) {
			break
		}
		g := e.topo.GroupOf(l, me)
		members := e.topo.MemberCount(l, g)

		// Tail groups have fewer children than the nominal capacity; slots
		// past members are never written and must not be waited on.
		for i := 0; i < members; i++ {
			if err := e.pe.WaitUntil(e.st.mailboxes[l], e.st.mailboxSlot(l, g, i), pgas.CmpEQ, done); err != nil {
				return err
			}
		}
		e.opt.Metrics.FanInLevel(l)
		e.debugf("pe %d: level %d group %d complete (%d children)", me, l, g, members)

		if l+1 < e.topo.Levels {
			pg := g / e.topo.Branch
			slot := g % e.topo.Branch
			parent := e.topo.Owner(l+1, pg)
			if err := e.pe.Put(e.st.mailboxes[l+1], e.st.mailboxSlot(l+1, pg, slot), done, parent); err != nil {
				return err
			}
			if err := e.pe.Quiet(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Broadcast forwards the terminate token down this PE's owned groups. The
// root seeds the top token; every other owner blocks until its parent's
// forward arrives. Non-owners return immediately and block in WaitGate.
func (e *staticEngine) Broadcast() error {
	me := e.pe.Me()
	top := e.topo.Levels - 1

	if me == e.topo.Root() {
		if err := e.pe.Put(e.st.tokens[top], 0, done, me); err != nil {
			return err
		}
	}
	return e.broadcastFrom(top)
}

// broadcastFrom runs the downward token chain without seeding the top
// token. The dynamic variant reuses it: there the globally elected leader,
// not the root, has already written the top token.
func (e *staticEngine) broadcastFrom(top int) error {
	me := e.pe.Me()
	for l := top; l >= 0; l-- {
		if !e.topo.IsOwner(l, me) {
			continue
		}
		g := e.topo.GroupOf(l, me)
		if err := e.pe.WaitUntil(e.st.tokens[l], g, pgas.CmpEQ, done); err != nil {
			return err
		}

		if l > 0 {
			firstChild := g * e.topo.Branch
			children := e.topo.MemberCount(l, g)
			for c := firstChild; c < firstChild+children; c++ {
				if err := e.pe.Put(e.st.tokens[l-1], c, done, e.topo.Owner(l-1, c)); err != nil {
					return err
				}
			}
		} else {
			firstPE := e.topo.Owner(0, g)
			members := e.topo.MemberCount(0, g)
			for p := firstPE; p < firstPE+members; p++ {
				if err := e.pe.Put(e.st.gate, 0, done, p); err != nil {
					return err
				}
			}
		}
		if err := e.pe.Quiet(); err != nil {
			return err
		}
		e.opt.Metrics.Broadcast(l)
		e.debugf("pe %d: forwarded terminate at level %d group %d", me, l, g)
	}
	return nil
}

// WaitGate blocks until this PE's own gate opens.
func (e *staticEngine) WaitGate() error {
	if err := e.pe.WaitUntil(e.st.gate, 0, pgas.CmpEQ, done); err != nil {
		return err
	}
	e.opt.Metrics.GateOpen()
	return nil
}

// Detect runs the full protocol on this PE.
func (e *staticEngine) Detect() (*Aggregate, error) {
	return runDetect(e, &e.engineBase)
}
