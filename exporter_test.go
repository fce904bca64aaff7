package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memBackend struct {
	mu       sync.Mutex
	messages []string
}

func (b *memBackend) Send(msg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *memBackend) drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.messages
	b.messages = nil
	return out
}

// newTestExporter builds a StatsdExporter wired to reg and backend but does
// not start its periodic task: tests drive emitCycle directly so they
// control the fake clock deterministically.
func newTestExporter(t *testing.T, reg *Registry, backend Backend) *StatsdExporter {
	t.Helper()
	e := NewStatsdExporter(
		WithRegistries(reg),
		WithBackend(backend),
		WithSendInterval(time.Second),
		WithSendOlderThan(10*time.Second),
	)
	e.self = newSelfMetrics()
	return e
}

// TestExporterScenarioC_CounterDelta exercises a counter reporting the
// delta since its last emission, including a cycle filtered by recency.
func TestExporterScenarioC_CounterDelta(t *testing.T) {
	restore := fakeClock(1000)
	defer restore()

	reg := NewRegistry()
	counter, _ := reg.Counter("counter", nil)
	backend := &memBackend{}
	exp := newTestExporter(t, reg, backend)

	exp.emitCycle() // cycle 1
	require.Equal(t, []string{"counter:0.0|c"}, backend.drain())

	counter.Inc() // value now 1.0
	// Emit strictly after the mutation: a last_changed equal to cycle 2's
	// emission time would sit on the strict recency boundary on cycle 3 and
	// be emitted again.
	advanceClock(1)
	exp.emitCycle() // cycle 2
	require.Equal(t, []string{"counter:1.0|c"}, backend.drain())

	advanceClock(1)
	exp.emitCycle() // cycle 3, no change
	require.Empty(t, backend.drain(), "unchanged cell within the recency window must be filtered")

	advanceClock(1)
	counter.Add(2) // value now 3.0
	exp.emitCycle() // cycle 4
	require.Equal(t, []string{"counter:2.0|c"}, backend.drain())
}

// TestExporterScenarioD_GaugeAbsolute exercises a gauge reporting its
// absolute value on every unfiltered cycle.
func TestExporterScenarioD_GaugeAbsolute(t *testing.T) {
	restore := fakeClock(1000)
	defer restore()

	reg := NewRegistry()
	gauge, _ := reg.Gauge("gg", 1.0, nil)
	backend := &memBackend{}
	exp := newTestExporter(t, reg, backend)

	// Emit strictly after the gauge's creation time, so that on cycle 2 its
	// last_changed lies strictly before the previous emission.
	advanceClock(1)
	exp.emitCycle()
	require.Equal(t, []string{"gg:1.0|g"}, backend.drain())

	advanceClock(1)
	exp.emitCycle()
	require.Empty(t, backend.drain())

	advanceClock(1)
	gauge.Add(2)
	exp.emitCycle()
	require.Equal(t, []string{"gg:3.0|g"}, backend.drain())

	advanceClock(1)
	gauge.Sub(0.5)
	exp.emitCycle()
	require.Equal(t, []string{"gg:2.5|g"}, backend.drain())
}

func TestExporterFirstCycleEmitsEveryCellIncludingZero(t *testing.T) {
	restore := fakeClock(1000)
	defer restore()

	reg := NewRegistry()
	_, _ = reg.Counter("zero_counter", nil)
	backend := &memBackend{}
	exp := newTestExporter(t, reg, backend)

	exp.emitCycle()
	msgs := backend.drain()
	require.Equal(t, []string{"zero_counter:0.0|c"}, msgs)
}

// TestExporterRecencyBoundaryStrictInequality covers the documented open
// question: a cell is filtered only when its
// last-changed timestamp falls STRICTLY inside (now-send_older_than,
// last_emission_ts). A cell sitting exactly on either boundary is still
// emitted.
func TestExporterRecencyBoundaryStrictInequality(t *testing.T) {
	restore := fakeClock(0)
	defer restore()

	reg := NewRegistry()
	counter, _ := reg.Counter("c", nil) // created at t=0, last_changed=0
	backend := &memBackend{}
	exp := NewStatsdExporter(
		WithRegistries(reg),
		WithBackend(backend),
		WithSendInterval(time.Second),
		WithSendOlderThan(10*time.Second),
	)
	exp.self = newSelfMetrics()

	exp.emitCycle() // cycle 1 at t=0: first ever, always emits. lastEmissionTimestamp -> 0
	require.NotEmpty(t, backend.drain())

	advanceClock(5)
	counter.Inc() // t=5, last_changed -> 5

	exp.emitCycle() // cycle 2 at t=5: interior=(5-10,0)=(-5,0); 5 not in range -> emits. lastEmissionTimestamp -> 5
	require.NotEmpty(t, backend.drain())

	advanceClock(7) // t=12, no mutation; last_changed stays 5
	exp.emitCycle() // cycle 3 at t=12: interior=(12-10,5)=(2,5); last_changed(5) == upper bound exactly,
	// strict "<" means 5<5 is false, so NOT stale -> still emitted despite being unchanged.
	require.NotEmpty(t, backend.drain(), "a cell exactly on the recency boundary must still be emitted")

	advanceClock(2) // t=14, still no mutation; last_changed stays 5
	exp.emitCycle() // cycle 4 at t=14: interior=(14-10,12)=(4,12); last_changed(5) is strictly inside -> stale.
	require.Empty(t, backend.drain(), "a cell strictly inside the recency window must be filtered")
}

func TestExporterLabeledCounterTagsInMessage(t *testing.T) {
	restore := fakeClock(1000)
	defer restore()

	reg := NewRegistry()
	counter, _ := reg.Counter("requests", LabelSchema{"method": LabelString})
	backend := &memBackend{}
	exp := newTestExporter(t, reg, backend)

	counter.Inc(StringLabel("method", "GET"))
	exp.emitCycle()
	require.Equal(t, []string{"requests:1.0|c|#method:GET"}, backend.drain())
}

func TestExporterSelfMetricsAccumulate(t *testing.T) {
	restore := fakeClock(1000)
	defer restore()

	reg := NewRegistry()
	counter, _ := reg.Counter("c", nil)
	backend := &memBackend{}
	exp := newTestExporter(t, reg, backend)

	exp.emitCycle()
	counter.Inc()
	advanceClock(1)
	exp.emitCycle()

	require.GreaterOrEqual(t, exp.self.PacketsSent.getCell(nil).Value(), float64(2))
}

func TestExporterStartZeroIntervalIsNoop(t *testing.T) {
	exp := NewStatsdExporter(WithSendInterval(0))
	require.NoError(t, exp.Start())
	exp.Stop() // must return nothing / not block
}

func TestExporterStopNeverStartedIsNoop(t *testing.T) {
	exp := NewStatsdExporter()
	exp.Stop() // no-op, must not panic
}

func TestExporterStartStopLifecycle(t *testing.T) {
	resetDefaultRegistryForTest()
	reg := NewRegistry()
	_, _ = reg.Counter("x", nil)
	backend := &memBackend{}

	exp := NewStatsdExporter(
		WithRegistries(reg),
		WithBackend(backend),
		WithSendInterval(5*time.Millisecond),
	)
	require.NoError(t, exp.Start())
	time.Sleep(30 * time.Millisecond)
	exp.Stop()

	require.NotEmpty(t, backend.drain())

	_, err := DefaultRegistry().GetMetric("exporter_packets_sent_total")
	require.NoError(t, err)
}
