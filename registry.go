package metrics

import (
	"reflect"
	"sort"
	"sync"
)

// Registry is a lock-protected ordered mapping from metric name to Metric.
// The process-wide default registry is lazily constructed; custom registries
// are freely constructible for tests and isolated subsystems.
type Registry struct {
	mu      sync.Mutex
	metrics map[string]Metric
	logger  logger

	// inits holds one *sync.Mutex per name, used only by the GetOrCreate
	// convenience constructors (Counter, Gauge) below to deduplicate
	// concurrent first-time creation without holding the registry's main
	// lock for the duration of construction.
	inits sync.Map
}

// NewRegistry constructs an empty, independent Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := applyRegistryOptions(opts)
	l := cfg.logger
	if l == nil {
		l = defaultLogger()
	}
	return &Registry{metrics: make(map[string]Metric), logger: l}
}

// RegistryOption configures a Registry constructed by NewRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	logger logger
}

func applyRegistryOptions(opts []RegistryOption) registryConfig {
	var cfg registryConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}

// WithRegistryLogger attaches a logger to a Registry for its register-time
// and overwrite diagnostics.
func WithRegistryLogger(l logger) RegistryOption {
	return func(c *registryConfig) { c.logger = l }
}

var (
	defaultRegistryInst *Registry
	defaultRegistryMu   sync.Mutex
)

// DefaultRegistry returns the process-wide default registry, constructing it
// on first call. Every call takes defaultRegistryMu and checks for nil under
// it; there is no lock-free fast path.
func DefaultRegistry() *Registry {
	defaultRegistryMu.Lock()
	defer defaultRegistryMu.Unlock()
	if defaultRegistryInst == nil {
		defaultRegistryInst = NewRegistry()
	}
	return defaultRegistryInst
}

// resetDefaultRegistryForTest replaces the default registry with a fresh one.
// Tests that need a clean default registry use it instead of mutating
// process-global state directly.
func resetDefaultRegistryForTest() {
	defaultRegistryMu.Lock()
	defer defaultRegistryMu.Unlock()
	defaultRegistryInst = NewRegistry()
}

// Register adds metric to the registry under name. If overwrite is false and
// name is already present, Register fails with a DuplicateNameError. If
// overwrite is true and name is present, the previous entry is replaced and a
// warning is logged. The metric's name is set (or, if it already carries a
// different name from a prior registration, Register fails with a
// ConflictingNameError).
func (r *Registry) Register(name string, metric Metric, overwrite bool) error {
	if err := validateNameAndSchema(name, metric.Schema()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.metrics[name]; exists {
		if !overwrite {
			return &DuplicateNameError{Name: name}
		}
		r.logger.Warnf("metrics: overwriting existing registration for %q", name)
	}

	if err := metric.setName(name); err != nil {
		return err
	}

	r.metrics[name] = metric
	return nil
}

// Unregister removes the entry for name. The metric object itself survives
// and keeps its name. Fails with ErrNotFound if name is absent.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[name]; !ok {
		return ErrNotFound
	}
	delete(r.metrics, name)
	return nil
}

// Clear removes all entries. The registry itself survives.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = make(map[string]Metric)
}

// GetMetric returns the metric registered under name, or ErrNotFound.
func (r *Registry) GetMetric(name string) (Metric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// ValueOf resolves the cell for name/labels without creating it and returns
// its current value. Returns ok=false on any failure (missing metric,
// invalid labels, missing cell) — this is a read-only convenience for tests
// and introspection, and swallows failure by design.
func (r *Registry) ValueOf(name string, labels ...Label) (value float64, ok bool) {
	m, err := r.GetMetric(name)
	if err != nil {
		return 0, false
	}
	c, found := m.getCellIfExists(labels)
	if !found {
		return 0, false
	}
	return c.Value(), true
}

// ZeroAll resets every scalar metric's cell value to zero. Grouped metrics
// are left untouched: grouped resets are emergent from eviction, and test
// scaffolding does not need them.
func (r *Registry) ZeroAll() {
	r.mu.Lock()
	snapshot := make([]Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		snapshot = append(snapshot, m)
	}
	r.mu.Unlock()

	for _, m := range snapshot {
		m.zero()
	}
}

// names returns the registered metric names in ascending lexicographic order,
// the snapshot consistency guaranteed by holding the registry lock for the
// duration of enumeration.
func (r *Registry) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) metric(name string) (Metric, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	return m, ok
}

// RegisterCollection inspects container's exported fields and registers each
// field whose type implements Metric, under the identifier declared by its
// `metrics:"..."` struct tag (defaulting to the field name with its first
// letter lower-cased, if the tag is absent). Non-metric fields are ignored. This is the concrete
// mechanism behind declaring a program's metrics as a single struct.
func (r *Registry) RegisterCollection(container interface{}) error {
	v := reflect.ValueOf(container)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported field, not addressable via reflection from outside
		}
		fv := v.Field(i)
		if !fv.CanInterface() {
			continue
		}
		m, ok := fv.Interface().(Metric)
		if !ok || m == nil {
			continue
		}
		name := field.Tag.Get("metrics")
		if name == "" {
			name = defaultFieldName(field.Name)
		}
		if err := r.Register(name, m, false); err != nil {
			return err
		}
	}
	return nil
}

func defaultFieldName(goName string) string {
	if goName == "" {
		return goName
	}
	r := []rune(goName)
	r[0] = toLowerASCII(r[0])
	return string(r)
}

func toLowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Counter returns the Counter registered under name, creating and
// registering one with the given schema if none exists yet. Concurrent
// first-time calls for the same name are deduplicated via a per-name mutex
// so exactly one Counter is constructed: once the metric exists, the read
// path takes only the registry lock and skips the per-name mutex, and
// construction happens off the registry's main lock.
func (r *Registry) Counter(name string, schema LabelSchema, opts ...MetricOption) (*Counter, error) {
	if m, ok := r.metric(name); ok {
		c, ok := m.(*Counter)
		if !ok {
			return nil, &ConflictingNameError{Existing: m.Kind().String(), Requested: KindCounter.String()}
		}
		return c, nil
	}

	km := r.keyMu(name)
	km.Lock()
	defer km.Unlock()

	if m, ok := r.metric(name); ok {
		c, ok := m.(*Counter)
		if !ok {
			return nil, &ConflictingNameError{Existing: m.Kind().String(), Requested: KindCounter.String()}
		}
		return c, nil
	}

	c := NewCounter(schema, opts...)
	if err := r.Register(name, c, false); err != nil {
		return nil, err
	}
	return c, nil
}

// Gauge returns the Gauge registered under name, creating and registering
// one with the given initial value and schema if none exists yet. See
// Counter for the concurrency dedup strategy.
func (r *Registry) Gauge(name string, initial float64, schema LabelSchema, opts ...MetricOption) (*Gauge, error) {
	if m, ok := r.metric(name); ok {
		g, ok := m.(*Gauge)
		if !ok {
			return nil, &ConflictingNameError{Existing: m.Kind().String(), Requested: KindGauge.String()}
		}
		return g, nil
	}

	km := r.keyMu(name)
	km.Lock()
	defer km.Unlock()

	if m, ok := r.metric(name); ok {
		g, ok := m.(*Gauge)
		if !ok {
			return nil, &ConflictingNameError{Existing: m.Kind().String(), Requested: KindGauge.String()}
		}
		return g, nil
	}

	g := NewGauge(initial, schema, opts...)
	if err := r.Register(name, g, false); err != nil {
		return nil, err
	}
	return g, nil
}

// keyMu returns a per-name mutex, creating one if necessary.
func (r *Registry) keyMu(name string) *sync.Mutex {
	m, _ := r.inits.LoadOrStore(name, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// PublishFrom registers every metric member of container to the default
// registry.
func PublishFrom(container interface{}) error {
	return DefaultRegistry().RegisterCollection(container)
}
