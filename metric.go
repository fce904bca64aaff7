package metrics

import "sync"

// MaxCells bounds the number of distinct label-set cells a grouped metric may
// hold at once. On overflow the least-recently-changed cell (other than the
// one just requested) is evicted.
const MaxCells = 200

// Metric is the common surface shared by Counter and Gauge: name and kind
// introspection, used by the registry, the scrape formatter, and the push
// exporter.
type Metric interface {
	// Name returns the metric's registered name, or "" if it has never been
	// registered.
	Name() string
	// Kind reports whether this is a Counter or a Gauge.
	Kind() Kind
	// Schema returns the declared label schema, or nil for a scalar metric.
	Schema() LabelSchema

	setName(name string) error
	getCells() []*Cell
	getCellIfExists(labels []Label) (*Cell, bool)
	getCell(labels []Label) *Cell
	zero()
}

// base implements the shared scalar/grouped cell-management logic for both
// Counter and Gauge. Either schema is nil (scalar: exactly one cell, no
// labels) or schema is non-nil (grouped: a label-keyed map of cells).
type base struct {
	mu     sync.Mutex
	name   string
	kind   Kind
	schema LabelSchema // nil => scalar
	initV  float64

	// scalar storage
	scalar *Cell

	// grouped storage
	cells map[string]*Cell

	logger logger
}

func newBase(kind Kind, initial float64, schema LabelSchema, logger logger) *base {
	if logger == nil {
		logger = defaultLogger()
	}
	if len(schema) == 0 {
		schema = nil
	}
	b := &base{kind: kind, schema: schema, initV: initial, logger: logger}
	if schema == nil {
		b.scalar = newCell("", LabelSet{}, kind, initial, logger)
	} else {
		b.cells = make(map[string]*Cell)
	}
	return b
}

func (b *base) Name() string { return b.name }

func (b *base) Kind() Kind { return b.kind }

func (b *base) Schema() LabelSchema { return b.schema }

// setName sets the metric's name at most once; attempting to rename an
// already-named metric to a different name fails.
func (b *base) setName(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.name != "" && b.name != name {
		return &ConflictingNameError{Existing: b.name, Requested: name}
	}
	b.name = name
	if b.scalar != nil {
		b.scalar.metricName = name
	}
	return nil
}

// getCell resolves the cell for a label assignment, creating it if necessary.
// Returns a dummy cell on schema mismatch.
func (b *base) getCell(labels []Label) *Cell {
	if b.schema == nil {
		if len(labels) == 0 {
			return b.scalar
		}
		return newDummyCell(b.name, NewLabelSet(labels), b.kind, b.logger)
	}

	if !b.schema.matches(labels) {
		return newDummyCell(b.name, NewLabelSet(labels), b.kind, b.logger)
	}

	ls := NewLabelSet(labels)
	key := ls.key()

	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.cells[key]; ok {
		return c
	}

	c := newCell(b.name, ls, b.kind, b.initV, b.logger)
	b.cells[key] = c

	if len(b.cells) > MaxCells {
		b.evictOldest(key)
	}

	return c
}

// getCellIfExists is the non-creating variant: it neither mutates the cell
// map nor returns a dummy cell; it simply reports whether a live cell exists.
func (b *base) getCellIfExists(labels []Label) (*Cell, bool) {
	if b.schema == nil {
		if len(labels) != 0 {
			return nil, false
		}
		return b.scalar, true
	}

	if !b.schema.matches(labels) {
		return nil, false
	}

	key := NewLabelSet(labels).key()

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.cells[key]
	return c, ok
}

// evictOldest scans b.cells (already locked) for the cell with the smallest
// last-changed timestamp, skipping skipKey (the cell just inserted), and
// deletes it. O(MaxCells); acceptable because the bound is small and this
// path is rare.
func (b *base) evictOldest(skipKey string) {
	var oldestKey string
	var oldestTS float64
	first := true
	for k, c := range b.cells {
		if k == skipKey {
			continue
		}
		ts := c.LastChanged()
		if first || ts < oldestTS {
			oldestKey, oldestTS = k, ts
			first = false
		}
	}
	if !first {
		delete(b.cells, oldestKey)
		b.logger.Warnf("metrics: cell limit (%d) exceeded for metric %q, evicted oldest cell", MaxCells, b.name)
	}
}

// getCells returns a snapshot copy of the metric's live cells, taking the
// metric's lock only transiently. For a scalar metric this is a
// single-element slice.
func (b *base) getCells() []*Cell {
	if b.schema == nil {
		return []*Cell{b.scalar}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Cell, 0, len(b.cells))
	for _, c := range b.cells {
		out = append(out, c)
	}
	return out
}

// zero resets the scalar cell's value to zero. No-op for grouped metrics
// grouped metrics are left untouched.
func (b *base) zero() {
	if b.scalar != nil {
		b.scalar.value.Store(0)
		b.scalar.lastChanged.Store(nowSeconds())
	}
}

// Counter is a monotonic-per-cell metric: Inc/Add accept only non-negative
// deltas, and SetIfGreater records an externally tracked monotonic counter.
type Counter struct {
	*base

	// lastEmitted is the push exporter's auxiliary bookkeeping: label-set key
	// -> last emitted value. It is not thread-safe: only an exporter's
	// emitCycle reads and writes it (see exporter.go), and nothing prevents
	// two exporters that scan the same counter from racing on it.
	lastEmitted map[string]float64
}

// NewCounter constructs a detached (unregistered, unnamed) Counter. A nil or
// empty schema makes it scalar; otherwise it is a grouped metric requiring
// exactly the declared labels on every access.
func NewCounter(schema LabelSchema, opts ...MetricOption) *Counter {
	cfg := applyMetricOptions(opts)
	return &Counter{base: newBase(KindCounter, 0, schema, cfg.logger), lastEmitted: make(map[string]float64)}
}

// Inc increments the cell resolved by labels by 1.
func (c *Counter) Inc(labels ...Label) { c.getCell(labels).Inc(1) }

// Add increments the cell resolved by labels by delta. A negative delta is a
// logged no-op.
func (c *Counter) Add(delta float64, labels ...Label) { c.getCell(labels).Inc(delta) }

// SetIfGreater raises the cell resolved by labels to v if v exceeds its
// current value.
func (c *Counter) SetIfGreater(v float64, labels ...Label) { c.getCell(labels).SetIfGreater(v) }

// Gauge is a non-monotonic metric supporting Inc, Dec, and Set.
type Gauge struct {
	*base
}

// NewGauge constructs a detached Gauge with the given initial value for newly
// created cells. A nil or empty schema makes it scalar.
func NewGauge(initial float64, schema LabelSchema, opts ...MetricOption) *Gauge {
	cfg := applyMetricOptions(opts)
	return &Gauge{base: newBase(KindGauge, initial, schema, cfg.logger)}
}

// Inc increments the cell resolved by labels by 1.
func (g *Gauge) Inc(labels ...Label) { g.getCell(labels).Inc(1) }

// Dec decrements the cell resolved by labels by 1.
func (g *Gauge) Dec(labels ...Label) { g.getCell(labels).Dec(1) }

// Add increments the cell resolved by labels by delta (may be negative).
func (g *Gauge) Add(delta float64, labels ...Label) { g.getCell(labels).Inc(delta) }

// Sub decrements the cell resolved by labels by delta; delta must be >= 0.
func (g *Gauge) Sub(delta float64, labels ...Label) { g.getCell(labels).Dec(delta) }

// Set sets the cell resolved by labels to v.
func (g *Gauge) Set(v float64, labels ...Label) { g.getCell(labels).Set(v) }

// MetricOption configures a Counter or Gauge at construction time.
type MetricOption func(*metricConfig)

type metricConfig struct {
	logger logger
}

func applyMetricOptions(opts []MetricOption) metricConfig {
	var cfg metricConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}

// WithMetricLogger attaches a logger to a Counter or Gauge for its invalid-access
// and negative-delta diagnostics. Defaults to a no-op logger.
func WithMetricLogger(l logger) MetricOption {
	return func(c *metricConfig) { c.logger = l }
}
