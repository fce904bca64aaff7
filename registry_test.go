package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterValidatesName(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register("valid_name:1", NewCounter(nil), false))

	err := reg.Register("1bad", NewCounter(nil), false)
	require.Error(t, err)

	err = reg.Register("has space", NewCounter(nil), false)
	require.Error(t, err)
}

func TestNameLengthBoundary(t *testing.T) {
	name200 := "a" + strings.Repeat("b", 199)
	require.Len(t, name200, 200)
	require.NoError(t, ValidateName(name200))

	name201 := name200 + "c"
	require.Error(t, ValidateName(name201))
}

func TestRegisterDuplicateWithoutOverwriteFails(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("dup", NewCounter(nil), false))

	err := reg.Register("dup", NewCounter(nil), false)
	require.Error(t, err)
	var dupErr *DuplicateNameError
	require.ErrorAs(t, err, &dupErr)
}

func TestRegisterOverwriteReplaces(t *testing.T) {
	reg := NewRegistry()
	first := NewCounter(nil)
	second := NewCounter(nil)

	require.NoError(t, reg.Register("c", first, false))
	require.NoError(t, reg.Register("c", second, true))

	got, err := reg.GetMetric("c")
	require.NoError(t, err)
	require.Same(t, second, got)
}

func TestUnregisterKeepsMetricName(t *testing.T) {
	reg := NewRegistry()
	c := NewCounter(nil)
	require.NoError(t, reg.Register("c", c, false))
	require.NoError(t, reg.Unregister("c"))
	require.Equal(t, "c", c.Name())

	_, err := reg.GetMetric("c")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnregisterMissingFails(t *testing.T) {
	reg := NewRegistry()
	require.ErrorIs(t, reg.Unregister("missing"), ErrNotFound)
}

func TestReregisterSameMetricDifferentRegistry(t *testing.T) {
	c := NewCounter(nil)
	reg1 := NewRegistry()
	reg2 := NewRegistry()

	require.NoError(t, reg1.Register("c", c, false))
	require.NoError(t, reg1.Unregister("c"))
	require.NoError(t, reg2.Register("c", c, false), "same name in a different registry must succeed")

	err := reg2.Unregister("c")
	require.NoError(t, err)
	err = reg2.Register("different_name", c, false)
	require.Error(t, err, "re-registering a named metric under a different name must fail")
}

func TestClearRemovesAllEntries(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", NewCounter(nil), false))
	require.NoError(t, reg.Register("b", NewCounter(nil), false))
	reg.Clear()
	require.Empty(t, reg.names())
}

func TestValueOfSwallowsFailures(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.ValueOf("missing")
	require.False(t, ok)

	c := NewCounter(LabelSchema{"k": LabelString})
	require.NoError(t, reg.Register("c", c, false))

	_, ok = reg.ValueOf("c") // missing required label
	require.False(t, ok)

	_, ok = reg.ValueOf("c", StringLabel("k", "absent")) // cell never created
	require.False(t, ok)

	c.Inc(StringLabel("k", "present"))
	v, ok := reg.ValueOf("c", StringLabel("k", "present"))
	require.True(t, ok)
	require.Equal(t, float64(1), v)
}

type exampleCollection struct {
	Requests   *Counter `metrics:"requests_total"`
	QueueDepth *Gauge   `metrics:"queue_depth"`
	unexported *Counter
	NotAMetric string
}

func TestRegisterCollection(t *testing.T) {
	reg := NewRegistry()
	coll := &exampleCollection{
		Requests:   NewCounter(nil),
		QueueDepth: NewGauge(0, nil),
		unexported: NewCounter(nil),
	}

	require.NoError(t, reg.RegisterCollection(coll))

	_, err := reg.GetMetric("requests_total")
	require.NoError(t, err)
	_, err = reg.GetMetric("queue_depth")
	require.NoError(t, err)

	require.Equal(t, []string{"queue_depth", "requests_total"}, reg.names())
}

func TestRegisterCollectionDefaultFieldName(t *testing.T) {
	type anon struct {
		Errors *Counter
	}
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCollection(&anon{Errors: NewCounter(nil)}))

	_, err := reg.GetMetric("errors")
	require.NoError(t, err)
}

func TestPublishFromRegistersToDefault(t *testing.T) {
	resetDefaultRegistryForTest()
	type coll struct {
		X *Counter `metrics:"publish_from_x"`
	}
	require.NoError(t, PublishFrom(&coll{X: NewCounter(nil)}))

	_, err := DefaultRegistry().GetMetric("publish_from_x")
	require.NoError(t, err)
}

func TestRegistryGetOrCreateCounterDedup(t *testing.T) {
	reg := NewRegistry()
	c1, err := reg.Counter("reqs", nil)
	require.NoError(t, err)
	c2, err := reg.Counter("reqs", nil)
	require.NoError(t, err)
	require.Same(t, c1, c2)
}

func TestRegistryGetOrCreateGaugeDedup(t *testing.T) {
	reg := NewRegistry()
	g1, err := reg.Gauge("depth", 0, nil)
	require.NoError(t, err)
	g2, err := reg.Gauge("depth", 0, nil)
	require.NoError(t, err)
	require.Same(t, g1, g2)
}

func TestRegistryGetOrCreateConflictingKind(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Counter("x", nil)
	require.NoError(t, err)

	_, err = reg.Gauge("x", 0, nil)
	require.Error(t, err)
}

func TestDefaultRegistrySingleton(t *testing.T) {
	resetDefaultRegistryForTest()
	require.Same(t, DefaultRegistry(), DefaultRegistry())
}
