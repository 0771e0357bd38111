package termination

import "github.com/NirjharDeb/treedone/pgas"

// dynamicEngine elects the last finisher of every group as its leader
// instead of parking a static owner on each mailbox.
//
// On publish, each PE fetch-increments its leaf group's counter at the
// (static, addressing-only) leaf owner; the PE that sees the prior value
// leafSize-1 finished last and becomes the leaf leader. Leaders then climb:
// a fetch-increment on the parent's child counter serializes the children,
// and the one that lands last inherits the parent group and keeps climbing.
// Exactly one PE wins the top level; it seeds the downward broadcast, which
// runs over the same static-owner token chain as the other variants.
type dynamicEngine struct {
	engineBase
	leafLeader bool
}

var _ Engine = (*dynamicEngine)(nil)

// Publish announces local completion by incrementing the leaf counter and,
// when this PE is the group's last finisher, claims the leaf leadership.
func (e *dynamicEngine) Publish() error {
	if e.published {
		return ErrRepublished
	}
	e.published = true

	if err := e.markLocalDone(); err != nil {
		return err
	}

	me := e.pe.Me()
	g0 := e.topo.GroupOf(0, me)
	owner := e.topo.Owner(0, g0)
	leafSize := e.topo.MemberCount(0, g0)

	prior, err := e.pe.FetchInc(e.st.leafCount, g0, owner)
	if err != nil {
		return err
	}
	if err := e.pe.Quiet(); err != nil {
		return err
	}
	e.opt.Metrics.Publish()

	if prior == int64(leafSize-1) {
		e.leafLeader = true
		if err := e.claimGroup(0, g0); err != nil {
			return err
		}
	}
	return nil
}

// DriveFanIn climbs the promotion chain while this PE keeps finishing last.
// The walk stops at the first level with a slower sibling; the unique PE
// that claims the top group seeds the downward terminate token.
func (e *dynamicEngine) DriveFanIn() error {
	if !e.leafLeader {
		return nil
	}

	l := 0
	g := e.topo.GroupOf(0, e.pe.Me())
	for l+1 < e.topo.Levels {
		pg := g / e.topo.Branch
		host := e.topo.Owner(l+1, pg)
		siblings := e.topo.MemberCount(l+1, pg)

		prior, err := e.pe.FetchInc(e.st.childCount[l+1], pg, host)
		if err != nil {
			return err
		}
		if prior+1 != int64(siblings) {
			// A sibling group is still running; its leader will pass us.
			return nil
		}
		if err := e.claimGroup(l+1, pg); err != nil {
			return err
		}
		l, g = l+1, pg
	}

	// Last finisher of the top group: global completion is proven.
	top := e.topo.Levels - 1
	if err := e.pe.Put(e.st.tokens[top], 0, done, e.topo.Root()); err != nil {
		return err
	}
	if err := e.pe.Quiet(); err != nil {
		return err
	}
	e.debugf("pe %d: global last finisher, seeded terminate token", e.pe.Me())
	return nil
}

// claimGroup records this PE as the dynamic leader of (level, g). The flags
// are hosted at the static owner for addressing only; fetch-increment has
// already guaranteed a single claimant per group.
func (e *dynamicEngine) claimGroup(level, g int) error {
	me := e.pe.Me()
	host := e.topo.Owner(level, g)

	if _, err := e.pe.CompareSwap(e.st.groupDone[level], g, 0, done, host); err != nil {
		return err
	}
	if err := e.pe.Put(e.st.leader[level], g, int64(me), host); err != nil {
		return err
	}
	if err := e.pe.Quiet(); err != nil {
		return err
	}
	e.opt.Metrics.Elected(level)
	e.debugf("pe %d: leader of level %d group %d (host %d)", me, level, g, host)
	return nil
}

// Broadcast and WaitGate run the same static-owner fan-out as the other
// variants: owners forward the token down, every PE blocks on its own gate.
func (e *dynamicEngine) Broadcast() error {
	// No root self-seed: the elected global leader wrote the top token.
	s := staticEngine{engineBase: e.engineBase}
	return s.broadcastFrom(e.topo.Levels - 1)
}

func (e *dynamicEngine) WaitGate() error {
	if err := e.pe.WaitUntil(e.st.gate, 0, pgas.CmpEQ, done); err != nil {
		return err
	}
	e.opt.Metrics.GateOpen()
	return nil
}

// Detect runs the full protocol on this PE.
func (e *dynamicEngine) Detect() (*Aggregate, error) {
	return runDetect(e, &e.engineBase)
}
