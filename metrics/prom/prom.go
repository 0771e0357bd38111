package prom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NirjharDeb/treedone/termination"
)

// Adapter exports termination.Metrics signals as Prometheus counters:
// totals for publishes and opened gates, per-level vectors for fan-in
// completions, token forwards, and won elections. One Adapter may be shared
// by every PE of an in-process job; the underlying counters tolerate
// concurrent increments.
type Adapter struct {
	publishes  prometheus.Counter
	fanIn      *prometheus.CounterVec
	broadcasts *prometheus.CounterVec
	gates      prometheus.Counter
	elections  *prometheus.CounterVec
}

// New builds an Adapter and registers its collectors under the given
// namespace and subsystem. A nil reg registers against the process-wide
// default; constLabels, when non-nil, is stamped onto every series (useful
// for tagging the variant or job size).
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "publishes_total",
			Help:        "Local completions published",
			ConstLabels: constLabels,
		}),
		fanIn: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "fanin_levels_total",
				Help:        "Completed fan-in levels by level",
				ConstLabels: constLabels,
			},
			[]string{"level"},
		),
		broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "broadcasts_total",
				Help:        "Terminate-token forwards by level",
				ConstLabels: constLabels,
			},
			[]string{"level"},
		),
		gates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "gates_opened_total",
			Help:        "Termination gates observed",
			ConstLabels: constLabels,
		}),
		elections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "elections_total",
				Help:        "Dynamic leader elections won by level",
				ConstLabels: constLabels,
			},
			[]string{"level"},
		),
	}
	reg.MustRegister(a.publishes, a.fanIn, a.broadcasts, a.gates, a.elections)
	return a
}

// Publish increments the published-completions counter.
func (a *Adapter) Publish() { a.publishes.Inc() }

// FanInLevel increments the fan-in counter for a level.
func (a *Adapter) FanInLevel(level int) { a.fanIn.WithLabelValues(levelLabel(level)).Inc() }

// Broadcast increments the token-forward counter for a level.
func (a *Adapter) Broadcast(level int) { a.broadcasts.WithLabelValues(levelLabel(level)).Inc() }

// GateOpen increments the opened-gates counter.
func (a *Adapter) GateOpen() { a.gates.Inc() }

// Elected increments the won-elections counter for a level.
func (a *Adapter) Elected(level int) { a.elections.WithLabelValues(levelLabel(level)).Inc() }

func levelLabel(level int) string {
	return strconv.Itoa(level)
}

var _ termination.Metrics = (*Adapter)(nil)
