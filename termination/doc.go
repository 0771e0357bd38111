// Package termination detects global termination across the PEs of a PGAS
// job using one-sided remote memory access only: no locks, no two-sided
// messaging, no collectives on the critical path.
//
// Design
//
//   - Topology: PEs are partitioned into leaf groups of G consecutive ids;
//     groups form a K-ary hierarchy whose owners are computed arithmetically
//     from the PE id (owner(l, g) = g·G·K^l). Every PE derives its full role
//     set locally in O(levels).
//
//   - Fan-in: each PE puts a done marker into its leaf group's mailbox at
//     the group owner. Owners wait on local memory for their complete child
//     set — tail groups wait only for the children that exist — and notify
//     the parent owner one level up, until the root holds proof that every
//     PE has finished.
//
//   - Fan-out: the root seeds a terminate token; owners forward it down the
//     same hierarchy; leaf owners open a per-PE gate. Applications block on
//     the gate and tear down once it opens.
//
//   - Variants: STAR (flat), H-STAR (K-ary), and a binary tree are one
//     engine over different planner branchings. The dynamic variant elects
//     the last finisher of each group as its leader via remote
//     fetch-increment, removing static owners from the upward critical path.
//     A factory (New) selects the variant from Options.
//
//   - Single-shot, single-writer: every symmetric slot transitions 0 → done
//     at most once and has exactly one authorized writer, so plain puts plus
//     a completion fence are enough; atomics appear only in the dynamic
//     variant's election slots and in exit bookkeeping (the root-last
//     acknowledgement counter and the aggregate print-once flag). There are
//     no timeouts: detection is purely
//     positive and waits are unbounded by design.
//
//   - Exit: three teardown policies order departures so nobody touches a
//     torn-down PE — a trailing collective barrier (default), root-leaves-
//     last with remote acknowledgements, or a substrate-level job exit
//     issued by the root.
//
// Basic usage
//
//	// Inside each PE's flow (pe is the substrate handle for this PE):
//	eng, err := termination.New(pe, termination.Options{
//	    LeafGroupSize: 8,
//	    BranchFactor:  8,
//	})
//	if err != nil {
//	    return err
//	}
//	// ... run the application's local work ...
//	agg, err := eng.Detect() // publish, fan-in, fan-out, gate, exit
//	if err != nil {
//	    return err
//	}
//	if agg != nil { // root only
//	    fmt.Printf("slowest PE: %.3f ms\n", agg.MaxMS)
//	}
//
// Observability
//
// Options.Metrics receives publish/fan-in/broadcast/gate/election signals;
// NoopMetrics is the default and a Prometheus adapter lives in metrics/prom.
// Options.Debug plus Options.Logger emit the planner summary and per-PE
// protocol traces.
//
// The package is substrate-agnostic: everything goes through pgas.PE. The
// pgas/inproc package runs a whole job inside one process for tests and
// benchmarks.
package termination
