package metrics

// fakeClock replaces clockFunc with a deterministic counter starting at
// startSeconds, returning a restore function. Used by tests that need exact
// control over last-changed timestamps (e.g. the exporter's recency filter).
func fakeClock(startSeconds float64) (restore func()) {
	original := clockFunc
	current := startSeconds
	clockFunc = func() float64 { return current }
	return func() { clockFunc = original }
}

// advanceClock is used together with fakeClock to move the fake clock
// forward by deltaSeconds.
func advanceClock(deltaSeconds float64) {
	// clockFunc was captured by fakeClock as a closure over `current`; to
	// advance it we re-point clockFunc to a new closure built on the last
	// observed value.
	last := clockFunc()
	next := last + deltaSeconds
	clockFunc = func() float64 { return next }
}
