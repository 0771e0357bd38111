package termination

import "github.com/NirjharDeb/treedone/internal/util"

// Topology is the canonical group hierarchy for a job: leaf groups of Leaf
// consecutive PEs at level 0, then Branch child groups per parent at every
// level above, up to a single root group.
//
// Everything is arithmetic over PE ids. Every PE derives its role at every
// level in O(Levels) with no distributed metadata: the owner of group g at
// level l is PE g·Leaf·Branch^l, i.e. the smallest id in the group's span.
type Topology struct {
	NPes   int
	Leaf   int // members per leaf group (G)
	Branch int // child groups per parent above the leaves (K)

	Levels int   // level 0 = leaf, level Levels-1 = root
	Groups []int // group count per level; Groups[Levels-1] == 1
}

// planTopology computes the hierarchy for npes PEs. Inputs are assumed
// already coerced: npes >= 1, leaf >= 1, branch >= 2.
func planTopology(npes, leaf, branch int) Topology {
	t := Topology{NPes: npes, Leaf: leaf, Branch: branch}

	ng := util.CeilDiv(npes, leaf)
	t.Groups = append(t.Groups, ng)
	for ng > 1 {
		ng = util.CeilDiv(ng, branch)
		t.Groups = append(t.Groups, ng)
	}
	t.Levels = len(t.Groups)
	return t
}

// Span returns the width in PEs of one group at the given level.
func (t Topology) Span(level int) int {
	return t.Leaf * util.IPow(t.Branch, level)
}

// GroupOf returns the index of the level-l group containing pe.
func (t Topology) GroupOf(level, pe int) int {
	return pe / t.Span(level)
}

// Owner returns the canonical owner PE of group g at the given level.
func (t Topology) Owner(level, g int) int {
	return g * t.Span(level)
}

// IsOwner reports whether pe owns its own group at the given level.
func (t Topology) IsOwner(level, pe int) bool {
	return pe%t.Span(level) == 0
}

// MemberCount returns the actual child count of group g at the given level:
// member PEs at level 0, child groups above. Tail groups come up short when
// the population below does not divide evenly.
func (t Topology) MemberCount(level, g int) int {
	if level == 0 {
		return util.Min(t.Leaf, t.NPes-g*t.Leaf)
	}
	return util.Min(t.Branch, t.Groups[level-1]-g*t.Branch)
}

// Root returns the owner PE of the single top-level group (always PE 0).
func (t Topology) Root() int {
	return t.Owner(t.Levels-1, 0)
}

// childCap returns the slot capacity of a group's mailbox at the given
// level: leaf groups hold one slot per member PE, higher groups one per
// child group. Tail groups leave trailing slots unused.
func (t Topology) childCap(level int) int {
	if level == 0 {
		return t.Leaf
	}
	return t.Branch
}
