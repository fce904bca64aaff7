package metrics

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Backend sends a single formatted UDP push message. The default, UDPBackend,
// is not safe for concurrent use by multiple callers — the exporter
// guarantees a single sender.
type Backend interface {
	Send(msg string) error
}

// UDPBackend sends messages to a single UDP endpoint over a socket dialed
// once and reused for the backend's lifetime.
type UDPBackend struct {
	conn *net.UDPConn
}

// NewUDPBackend dials addr (host:port) once and returns a Backend that writes
// every message to that socket.
func NewUDPBackend(addr string) (*UDPBackend, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPBackend{conn: conn}, nil
}

// Send writes msg to the backend's socket.
func (b *UDPBackend) Send(msg string) error {
	_, err := b.conn.Write([]byte(msg))
	return err
}

// Close releases the backend's socket.
func (b *UDPBackend) Close() error {
	return b.conn.Close()
}

// DefaultStatsdAddr is the exporter's default UDP target.
const DefaultStatsdAddr = "127.0.0.1:8125"

const (
	defaultSendInterval  = 60 * time.Second
	defaultSendOlderThan = 120 * time.Second
)

// SelfMetrics are the exporter's own counters, registered to the default
// registry on first Start.
type SelfMetrics struct {
	PacketsSent        *Counter
	EmissionLagMS      *Counter
	EmissionDurationMS *Counter
}

func newSelfMetrics() *SelfMetrics {
	return &SelfMetrics{
		PacketsSent:        NewCounter(nil),
		EmissionLagMS:      NewCounter(nil),
		EmissionDurationMS: NewCounter(nil),
	}
}

// StatsdExporter is a periodic background worker that scans registered
// metrics, computes per-cell deltas for counters, filters by recency,
// formats UDP datagrams, and self-observes its own emission lag and
// duration.
type StatsdExporter struct {
	sendInterval  time.Duration
	sendOlderThan time.Duration
	backend       Backend
	registries    []*Registry
	logger        logger

	self *SelfMetrics

	mu                    sync.Mutex
	lastEmissionTimestamp float64 // 0 == "never emitted"
	hasEmitted            bool
	task                  *PeriodicTask
}

// ExporterOption configures a StatsdExporter at construction time.
type ExporterOption func(*StatsdExporter)

// WithSendInterval sets how often the exporter emits. Zero disables emission
// entirely (Start logs a warning and does nothing). Default 60s.
func WithSendInterval(d time.Duration) ExporterOption {
	return func(e *StatsdExporter) { e.sendInterval = d }
}

// WithSendOlderThan sets the recency window. Default 120s.
func WithSendOlderThan(d time.Duration) ExporterOption {
	return func(e *StatsdExporter) { e.sendOlderThan = d }
}

// WithBackend sets the push backend. Default: a UDP socket to 127.0.0.1:8125.
func WithBackend(b Backend) ExporterOption {
	return func(e *StatsdExporter) { e.backend = b }
}

// WithRegistries sets the set of registries the exporter scans. Default:
// {DefaultRegistry()}.
func WithRegistries(registries ...*Registry) ExporterOption {
	return func(e *StatsdExporter) { e.registries = registries }
}

// WithExporterLogger attaches a logger for the exporter's own diagnostics.
func WithExporterLogger(l logger) ExporterOption {
	return func(e *StatsdExporter) { e.logger = l }
}

// NewStatsdExporter constructs a StatsdExporter. It does not start emitting
// until Start is called.
func NewStatsdExporter(opts ...ExporterOption) *StatsdExporter {
	e := &StatsdExporter{
		sendInterval:  defaultSendInterval,
		sendOlderThan: defaultSendOlderThan,
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	if e.logger == nil {
		e.logger = defaultLogger()
	}
	if e.registries == nil {
		e.registries = []*Registry{DefaultRegistry()}
	}
	return e
}

// Start registers the exporter's self-metrics to the default registry and,
// if the configured send interval is positive, spawns the periodic task
// bound to the emit cycle. If send interval is zero, Start logs a warning
// and does nothing. Self-metrics are registered only on the first Start: a
// subsequent Start after Stop keeps accumulating on the existing self-metrics
// rather than resetting them.
func (e *StatsdExporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sendInterval <= 0 {
		e.logger.Warnf("metrics: statsd exporter send_interval is zero, emission disabled")
		return nil
	}

	if e.self == nil {
		self := newSelfMetrics()
		if err := DefaultRegistry().Register("exporter_packets_sent_total", self.PacketsSent, true); err != nil {
			return err
		}
		if err := DefaultRegistry().Register("exporter_emission_lag_ms_total", self.EmissionLagMS, true); err != nil {
			return err
		}
		if err := DefaultRegistry().Register("exporter_emission_duration_ms_total", self.EmissionDurationMS, true); err != nil {
			return err
		}
		e.self = self
	}

	if e.backend == nil {
		b, err := NewUDPBackend(DefaultStatsdAddr)
		if err != nil {
			return err
		}
		e.backend = b
	}

	e.task = NewPeriodicTask("statsd-exporter", e.sendInterval, e.emitCycle)
	return nil
}

// Stop cancels and joins the periodic task, clearing the handle. Stopping an
// exporter that was never started is a no-op.
func (e *StatsdExporter) Stop() {
	e.mu.Lock()
	task := e.task
	e.task = nil
	e.mu.Unlock()

	if task == nil {
		return
	}
	task.Stop()
}

// SelfMetrics returns the exporter's self-metrics, or nil if Start has not
// been called.
func (e *StatsdExporter) SelfMetrics() *SelfMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.self
}

// emitCycle is the exporter's single iteration, invoked by the periodic task.
// It scans every registered cell, applies the recency filter, formats and
// sends the surviving messages, and updates its own self metrics.
func (e *StatsdExporter) emitCycle() {
	cycleStart := time.Now()
	newTS := nowSeconds()

	e.mu.Lock()
	lastTS := e.lastEmissionTimestamp
	hadEmitted := e.hasEmitted
	sendOlderThan := e.sendOlderThan.Seconds()
	sendInterval := e.sendInterval.Seconds()
	e.mu.Unlock()

	messages := make([]string, 0)

	for _, reg := range e.registries {
		for _, name := range reg.names() {
			m, ok := reg.metric(name)
			if !ok {
				continue
			}
			for _, cell := range m.getCells() {
				lc := cell.LastChanged()
				// Emit unless newTS-sendOlderThan < lc < lastTS.
				// On the first cycle lastTS == 0, making the interior condition
				// false, which forces emission. Preserve the strict inequality
				// exactly.
				stale := (newTS-sendOlderThan) < lc && lc < lastTS
				if stale {
					continue
				}
				msg := e.formatMessage(m, cell)
				if msg != "" {
					messages = append(messages, msg)
				}
			}
		}
	}

	if hadEmitted {
		lagMS := (newTS-lastTS)*1000 - sendInterval*1000
		if lagMS > 0 {
			e.self.EmissionLagMS.Add(lagMS)
		}
	}

	for _, msg := range messages {
		if err := e.backend.Send(msg); err != nil {
			e.logger.Warnf("metrics: statsd exporter send failed: %v", err)
		}
	}

	e.mu.Lock()
	e.lastEmissionTimestamp = newTS
	e.hasEmitted = true
	e.mu.Unlock()

	e.self.PacketsSent.Add(float64(len(messages)))
	e.self.EmissionDurationMS.Add(float64(time.Since(cycleStart).Milliseconds()))
}

// formatMessage renders one cell as a statsd-style UDP push message: a
// counter reports the delta since the last emission and advances its
// exporter-owned baseline; a gauge reports its absolute value.
func (e *StatsdExporter) formatMessage(m Metric, cell *Cell) string {
	tags := cell.Labels().statsdTags()
	switch c := m.(type) {
	case *Counter:
		key := cell.Labels().key()
		prev := c.lastEmitted[key]
		cur := cell.Value()
		delta := cur - prev
		c.lastEmitted[key] = cur
		return m.Name() + ":" + formatStatsdValue(delta) + "|c" + tags
	default:
		_ = c
		return m.Name() + ":" + formatStatsdValue(cell.Value()) + "|g" + tags
	}
}

func formatStatsdValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
