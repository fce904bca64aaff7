package metrics

import (
	"time"

	"go.uber.org/atomic"
)

// Kind distinguishes Counter metrics from Gauge metrics. A cell inherits its
// owning metric's Kind at creation and never changes it.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
)

func (k Kind) String() string {
	if k == KindGauge {
		return "gauge"
	}
	return "counter"
}

// Cell is the atom of measurement: an atomically-updated float64 value plus an
// independently-atomic last-changed timestamp (seconds since epoch). Once a
// cell is attached to a named metric its label set never changes.
//
// Value and last-changed are updated via two separate atomics, not one
// compound write: a reader may observe a new value with a stale timestamp or
// vice versa. This is deliberate, not a bug.
type Cell struct {
	value       atomic.Float64
	lastChanged atomic.Float64

	metricName string
	labels     LabelSet
	kind       Kind

	// dummy marks a sentinel cell returned for an invalid label access. Dummy
	// cells are never stored in a metric's cell map; every mutation on one
	// logs and no-ops.
	dummy bool

	logger logger
}

func newCell(metricName string, labels LabelSet, kind Kind, initial float64, logger logger) *Cell {
	c := &Cell{metricName: metricName, labels: labels, kind: kind, logger: logger}
	c.value.Store(initial)
	c.lastChanged.Store(nowSeconds())
	return c
}

func newDummyCell(metricName string, labels LabelSet, kind Kind, logger logger) *Cell {
	return &Cell{metricName: metricName, labels: labels, kind: kind, dummy: true, logger: logger}
}

// clockFunc is the library's sole wall-clock reader, exposed as a package
// variable so tests can substitute a deterministic clock. Embedders have no
// supported way to override it.
var clockFunc = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// nowSeconds returns the current wall-clock time, seconds since epoch.
func nowSeconds() float64 {
	return clockFunc()
}

// Value returns the cell's current value. Safe for concurrent use.
func (c *Cell) Value() float64 { return c.value.Load() }

// LastChanged returns the cell's last-changed timestamp in seconds since
// epoch. May be observed out of sync with Value(); see the Cell doc comment.
func (c *Cell) LastChanged() float64 { return c.lastChanged.Load() }

// Labels returns the cell's immutable label set.
func (c *Cell) Labels() LabelSet { return c.labels }

// Kind reports whether this cell belongs to a Counter or a Gauge.
func (c *Cell) Kind() Kind { return c.kind }

// IsDummy reports whether this is the sentinel returned for an invalid label access.
func (c *Cell) IsDummy() bool { return c.dummy }

// Inc atomically adds delta to the cell's value. For Counter cells delta must
// be >= 0; a negative delta is a logged no-op. For Gauge
// cells any delta is accepted.
func (c *Cell) Inc(delta float64) {
	if c.dummy {
		c.logInvalidAccess("Inc")
		return
	}
	if c.kind == KindCounter && delta < 0 {
		c.logger.Warnf("metrics: negative increment %v dropped for counter %q labels=%v", delta, c.metricName, c.labels.Labels())
		return
	}
	c.value.Add(delta)
	c.lastChanged.Store(nowSeconds())
}

// Dec atomically subtracts delta from the cell's value. Only meaningful for
// Gauge cells; delta must be >= 0 (symmetric with Inc) — a negative delta is
// a logged no-op. Calling Dec on a Counter cell is also a logged no-op:
// Dec is only meaningful for gauges.
func (c *Cell) Dec(delta float64) {
	if c.dummy {
		c.logInvalidAccess("Dec")
		return
	}
	if c.kind == KindCounter {
		c.logger.Warnf("metrics: Dec called on counter %q is not supported, dropped", c.metricName)
		return
	}
	if delta < 0 {
		c.logger.Warnf("metrics: negative decrement %v dropped for gauge %q labels=%v", delta, c.metricName, c.labels.Labels())
		return
	}
	c.value.Sub(delta)
	c.lastChanged.Store(nowSeconds())
}

// Set atomically exchanges the cell's value. Gauge-only; calling Set on a
// Counter cell is a logged no-op.
func (c *Cell) Set(v float64) {
	if c.dummy {
		c.logInvalidAccess("Set")
		return
	}
	if c.kind == KindCounter {
		c.logger.Warnf("metrics: Set called on counter %q is not supported, dropped", c.metricName)
		return
	}
	c.value.Store(v)
	c.lastChanged.Store(nowSeconds())
}

// SetIfGreater atomically raises the cell's value to v if v is strictly
// greater than the current value, recording an externally tracked monotonic
// counter. The last-changed timestamp is updated only when the value actually
// moved. Counter-only; calling it on a Gauge cell is a logged no-op.
func (c *Cell) SetIfGreater(v float64) {
	if c.dummy {
		c.logInvalidAccess("SetIfGreater")
		return
	}
	if c.kind == KindGauge {
		c.logger.Warnf("metrics: SetIfGreater called on gauge %q is not supported, dropped", c.metricName)
		return
	}
	for {
		old := c.value.Load()
		if v <= old {
			return
		}
		if c.value.CAS(old, v) {
			c.lastChanged.Store(nowSeconds())
			return
		}
	}
}

func (c *Cell) logInvalidAccess(op string) {
	c.logger.Errorf("metrics: invalid label access on metric %q: op=%s labels=%v", c.metricName, op, c.labels.Labels())
}
