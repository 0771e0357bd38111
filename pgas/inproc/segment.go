package inproc

import (
	"math"

	"github.com/NirjharDeb/treedone/internal/util"
)

// segKind distinguishes int64 and float64 symmetric segments.
type segKind int

const (
	kindInt segKind = iota
	kindFloat
)

func (k segKind) String() string {
	if k == kindFloat {
		return "float"
	}
	return "int"
}

// segment is one collective allocation: size slots on each of npes PEs.
//
// Slots are padded to a cache line each. Protocol slots are exactly the kind
// of memory many goroutines hammer from different cores (mailboxes, counters,
// gates), and padding keeps a hot slot from sharing a line with its neighbor.
// Float slots store math.Float64bits and are never used with atomics beyond
// plain load/store.
type segment struct {
	world *World
	kind  segKind
	size  int
	slots [][]util.PaddedAtomicUint64 // [pe][idx]
}

func newSegment(w *World, kind segKind, npes, size int) *segment {
	s := &segment{world: w, kind: kind, size: size}
	s.slots = make([][]util.PaddedAtomicUint64, npes)
	for pe := range s.slots {
		s.slots[pe] = make([]util.PaddedAtomicUint64, size)
	}
	return s
}

// Len returns the number of slots per PE.
func (s *segment) Len() int { return s.size }

func (s *segment) loadInt(pe, idx int) int64 {
	return int64(s.slots[pe][idx].Load())
}

// storeInt writes the slot and wakes the target PE's local waiters.
// The store happens before the broadcast, so a waiter that re-checks the
// predicate after waking always observes the new value.
func (s *segment) storeInt(pe, idx int, val int64) {
	s.slots[pe][idx].Store(uint64(val))
	s.world.notif[pe].broadcast()
}

func (s *segment) loadFloat(pe, idx int) float64 {
	return math.Float64frombits(s.slots[pe][idx].Load())
}

func (s *segment) storeFloat(pe, idx int, val float64) {
	s.slots[pe][idx].Store(math.Float64bits(val))
	s.world.notif[pe].broadcast()
}

// casInt atomically swaps expected for desired, returning the prior value.
func (s *segment) casInt(pe, idx int, expected, desired int64) int64 {
	for {
		old := s.slots[pe][idx].Load()
		if int64(old) != expected {
			return int64(old)
		}
		if s.slots[pe][idx].CompareAndSwap(old, uint64(desired)) {
			s.world.notif[pe].broadcast()
			return expected
		}
	}
}

// fetchIncInt atomically adds one, returning the prior value.
func (s *segment) fetchIncInt(pe, idx int) int64 {
	prior := int64(s.slots[pe][idx].Add(1)) - 1
	s.world.notif[pe].broadcast()
	return prior
}
