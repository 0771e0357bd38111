package termination

// Metrics receives the protocol's progress signals on the PE's own flow.
// The default is NoopMetrics; metrics/prom exports the same signals as
// Prometheus counters. Keep implementations cheap: Publish and GateOpen
// fire on every PE, the level hooks on owners and leaders.
type Metrics interface {
	// Publish fires when this PE publishes its local completion.
	Publish()
	// FanInLevel fires when this PE, as a group owner, has observed all of
	// its children at the given level.
	FanInLevel(level int)
	// Broadcast fires when this PE forwards the terminate token (or member
	// gates, at level 0) for the given level.
	Broadcast(level int)
	// GateOpen fires when this PE observes its own termination gate.
	GateOpen()
	// Elected fires when this PE wins the last-finisher election for a group
	// at the given level (dynamic variant only).
	Elected(level int)
}

// NoopMetrics discards every signal; it is what an engine gets when
// Options.Metrics is left nil.
type NoopMetrics struct{}

// Publish discards the local-completion signal.
func (NoopMetrics) Publish() {}

// FanInLevel discards the completed-level signal.
func (NoopMetrics) FanInLevel(int) {}

// Broadcast discards the token-forward signal.
func (NoopMetrics) Broadcast(int) {}

// GateOpen discards the gate signal.
func (NoopMetrics) GateOpen() {}

// Elected discards the election signal.
func (NoopMetrics) Elected(int) {}
