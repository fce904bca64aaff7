package metrics

import (
	"errors"
	"fmt"
)

// ValidationError reports a metric or label name that fails the library's
// naming rules. Raised at registration time; the metric is not entered into
// the registry.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("metrics: invalid name %q: %s", e.Name, e.Reason)
}

// ConflictingNameError reports an attempt to register a metric that already
// carries a different name from a prior registration. Registry.Counter and
// Registry.Gauge also return it when the name is already registered as the
// other kind; Existing and Requested then hold the kind names ("counter",
// "gauge").
type ConflictingNameError struct {
	Existing  string
	Requested string
}

func (e *ConflictingNameError) Error() string {
	return fmt.Sprintf("metrics: metric already named %q, cannot register as %q", e.Existing, e.Requested)
}

// DuplicateNameError reports an attempt to register under a name already
// present in the registry with overwrite=false.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("metrics: name %q already registered", e.Name)
}

// ErrNotFound is returned by registry lookups (GetMetric, Unregister) when
// the requested name is absent.
var ErrNotFound = errors.New("metrics: not found")
