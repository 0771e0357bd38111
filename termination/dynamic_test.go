package termination_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NirjharDeb/treedone/pgas"
	"github.com/NirjharDeb/treedone/pgas/inproc"
	"github.com/NirjharDeb/treedone/termination"
)

// countingMetrics tallies protocol signals across all PEs of a world.
type countingMetrics struct {
	mu        sync.Mutex
	publishes int
	gates     int
	elections map[int]int // level -> wins
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{elections: make(map[int]int)}
}

func (m *countingMetrics) Publish() {
	m.mu.Lock()
	m.publishes++
	m.mu.Unlock()
}

func (m *countingMetrics) FanInLevel(int) {}

func (m *countingMetrics) Broadcast(int) {}

func (m *countingMetrics) GateOpen() {
	m.mu.Lock()
	m.gates++
	m.mu.Unlock()
}

func (m *countingMetrics) Elected(level int) {
	m.mu.Lock()
	m.elections[level]++
	m.mu.Unlock()
}

// Every group at every level elects exactly one leader: the fetch-increment
// serializes the children, so only one PE sees the last-child prior value.
func TestDynamic_LeaderUniqueness(t *testing.T) {
	const npes = 64
	metrics := newCountingMetrics()

	// Staggered completion in reverse id order: the lowest id of each span
	// tends to finish last, but the invariant must hold for any order.
	agg, status := detectAll(t, npes, termination.Options{
		LeafGroupSize: 8,
		BranchFactor:  8,
		Variant:       termination.VariantDynamic,
		Metrics:       metrics,
	}, func(me int) time.Duration {
		return time.Duration(npes-1-me) * 200 * time.Microsecond
	})

	assert.Equal(t, 0, status)
	require.NotNil(t, agg)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, npes, metrics.publishes)
	assert.Equal(t, npes, metrics.gates)
	assert.Equal(t, 8, metrics.elections[0], "one leaf leader per group")
	assert.Equal(t, 1, metrics.elections[1], "exactly one global last finisher")
}

func TestDynamic_TailGroups(t *testing.T) {
	// 70 PEs: the tail leaf group elects on six members, the top group on
	// nine children.
	metrics := newCountingMetrics()
	agg, status := detectAll(t, 70, termination.Options{
		LeafGroupSize: 8,
		BranchFactor:  8,
		Variant:       termination.VariantDynamic,
		Metrics:       metrics,
	}, nil)

	assert.Equal(t, 0, status)
	require.NotNil(t, agg)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 9, metrics.elections[0])
	assert.Equal(t, 1, metrics.elections[1])
}

// The dynamic walk must stop at the first level with a slower sibling; a
// deep hierarchy exercises multi-level promotion chains.
func TestDynamic_DeepPromotion(t *testing.T) {
	const npes = 32
	metrics := newCountingMetrics()
	agg, status := detectAll(t, npes, termination.Options{
		LeafGroupSize: 2,
		BranchFactor:  2,
		Variant:       termination.VariantDynamic,
		Metrics:       metrics,
	}, func(me int) time.Duration {
		return time.Duration(me%7) * 300 * time.Microsecond
	})

	assert.Equal(t, 0, status)
	require.NotNil(t, agg)

	// groups per level for npes=32, leaf=2, branch=2: 16, 8, 4, 2, 1.
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	for level, groups := range []int{16, 8, 4, 2, 1} {
		assert.Equal(t, groups, metrics.elections[level], "level %d", level)
	}
}

// The dynamic variant must also hold up under the root-last exit, where the
// acknowledgement counter is one more fetch-inc target at the root.
func TestDynamic_RootLastExit(t *testing.T) {
	agg, status := detectAll(t, 24, termination.Options{
		LeafGroupSize: 4,
		BranchFactor:  3,
		Variant:       termination.VariantDynamic,
		Exit:          termination.ExitRootLast,
	}, func(me int) time.Duration {
		return time.Duration(me%5) * time.Millisecond
	})
	assert.Equal(t, 0, status)
	require.NotNil(t, agg)
	assert.Equal(t, 24, agg.NPes)
}

// Gate slots remain single-writer in the dynamic variant as well; only the
// counters are multi-writer, and those go through atomics, not puts.
func TestDynamic_GatePutsSingleWriter(t *testing.T) {
	const npes = 40
	world, err := inproc.New(npes)
	require.NoError(t, err)

	rec := newWriteRecorder()
	_, err = world.Run(func(pe pgas.PE) error {
		eng, err := termination.New(&writeProbe{PE: pe, rec: rec}, termination.Options{
			LeafGroupSize: 8,
			BranchFactor:  2,
			Variant:       termination.VariantDynamic,
		})
		if err != nil {
			return err
		}
		_, err = eng.Detect()
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.maxWriters())
}
