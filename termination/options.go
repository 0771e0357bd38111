package termination

import (
	"time"

	"github.com/NirjharDeb/treedone/internal/util"
)

// Variant selects the protocol family member. All variants share the same
// planner, flag store, and gate; they differ in how the "done" signals climb
// to the root.
type Variant int

const (
	// VariantHStar is the multi-level hierarchical star: leaf groups of
	// LeafGroupSize PEs, then BranchFactor child groups per owner above.
	// This is the default.
	VariantHStar Variant = iota
	// VariantStar is the flat star: every leaf owner reports straight to the
	// root, regardless of how many leaf groups there are.
	VariantStar
	// VariantTree is a binary tree of groups (BranchFactor pinned to 2).
	VariantTree
	// VariantDynamic elects the last finisher of each group as its leader
	// via remote fetch-increment instead of waiting at static owners.
	VariantDynamic
)

// String returns the variant's configuration name.
func (v Variant) String() string {
	switch v {
	case VariantStar:
		return "star"
	case VariantTree:
		return "tree"
	case VariantDynamic:
		return "dynamic"
	default:
		return "hstar"
	}
}

// ParseVariant maps a configuration name to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "hstar", "":
		return VariantHStar, nil
	case "star":
		return VariantStar, nil
	case "tree":
		return VariantTree, nil
	case "dynamic":
		return VariantDynamic, nil
	default:
		return VariantHStar, ErrUnknownVariant
	}
}

// ExitPolicy selects how PEs leave the protocol once the gate has opened,
// so that no PE issues remote operations against a torn-down target.
type ExitPolicy int

const (
	// ExitBarrier: every PE crosses a collective barrier after its gate
	// opens, then returns. No remote atomics required. The default.
	ExitBarrier ExitPolicy = iota
	// ExitRootLast: non-roots poll the root's release flag, then acknowledge
	// via a remote fetch-increment at the root and return; the root sets the
	// flag after gathering the aggregate, waits for N-1 acknowledgements,
	// and returns last.
	ExitRootLast
	// ExitGlobal: the root terminates the entire job via the substrate as
	// soon as fan-in completes. The gate is never observed; non-roots are
	// torn down by the substrate.
	ExitGlobal
)

// String returns the policy's configuration name.
func (e ExitPolicy) String() string {
	switch e {
	case ExitRootLast:
		return "rootlast"
	case ExitGlobal:
		return "global"
	default:
		return "barrier"
	}
}

// ParseExitPolicy maps a configuration name to an ExitPolicy.
func ParseExitPolicy(s string) (ExitPolicy, error) {
	switch s {
	case "barrier", "":
		return ExitBarrier, nil
	case "rootlast":
		return ExitRootLast, nil
	case "global":
		return ExitGlobal, nil
	default:
		return ExitBarrier, ErrUnknownExitPolicy
	}
}

// Clock is the time source behind the per-PE elapsed measurement. Engines
// read it twice: at the post-allocation barrier and at local completion.
// Substitute a fixed or scripted clock to make elapsed values reproducible.
type Clock interface{ NowUnixNano() int64 }

// Logger receives debug lines when Options.Debug is set.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Options configures an engine. The zero value is a working configuration;
// New resolves the gaps:
//   - LeafGroupSize < 1 => 8
//   - BranchFactor  < 2 => 8
//   - nil Metrics       => NoopMetrics
//
// Out-of-range sizes coerce silently rather than erroring, matching the
// environment-variable contract: a bad setting degrades to defaults, it
// never takes the job down.
type Options struct {
	// LeafGroupSize is the number of consecutive PEs per leaf group (G).
	LeafGroupSize int

	// BranchFactor is the number of child groups per owner above the leaf
	// level (K). Ignored by VariantStar (derived from the leaf group count)
	// and VariantTree (pinned to 2).
	BranchFactor int

	// Variant selects the protocol family member.
	Variant Variant

	// Exit selects the teardown coordination policy.
	Exit ExitPolicy

	// Debug enables planner and per-PE protocol logging via Logger.
	Debug bool

	// Logger receives debug output. Nil with Debug set falls back to the
	// standard library's default logger.
	Logger Logger

	// Metrics receives protocol signals. Nil => NoopMetrics.
	Metrics Metrics

	// Clock feeds the elapsed-time measurement; nil reads time.Now.
	Clock Clock
}

// withDefaults returns a copy with all defaults resolved against the job
// size, including the per-variant branching rule.
func (o Options) withDefaults(npes int) Options {
	if o.LeafGroupSize < 1 {
		o.LeafGroupSize = 8
	}
	if o.BranchFactor < 2 {
		o.BranchFactor = 8
	}
	switch o.Variant {
	case VariantStar:
		// One level above the leaves: the root owns every leaf group.
		groups0 := util.CeilDiv(npes, o.LeafGroupSize)
		if groups0 < 2 {
			groups0 = 2
		}
		o.BranchFactor = groups0
	case VariantTree:
		o.BranchFactor = 2
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}

// now returns the current UnixNano from the configured clock.
func (o Options) now() int64 {
	if o.Clock != nil {
		return o.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}
