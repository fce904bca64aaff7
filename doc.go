/*
Package metrics provides a concurrency-safe, in-process metrics instrumentation
library for long-running server programs.

# Overview

Programs create named Counters and Gauges, optionally dimensioned by labels,
and mutate them from arbitrary concurrent call sites. Values are exposed
through two backends: a text-format scrape endpoint (pull) and a
line-oriented UDP push exporter that reports deltas on a periodic cadence.

The library is organized around three tightly coupled pieces:

 1. The metric data model and Registry: thread-safe Counters/Gauges with
    multi-dimensional label cells, bounded per-metric cell count with LRU
    eviction, and name/label validation.

 2. The UDP push exporter (StatsdExporter): a periodic background worker
    that scans registered metrics, computes per-cell deltas for counters,
    filters by recency, formats UDP datagrams, and self-observes its own
    emission lag and duration.

 3. PeriodicTask: a generic "do X every T, cancellable promptly" worker used
    by the exporter and available to embedders directly.

# Reference implementation

Counter and Gauge share a common cell-management core (base, in metric.go):
either a single scalar Cell, or a mutex-protected map from canonicalized
LabelSet to Cell, bounded at MaxCells with LRU eviction on overflow. Registry
is a lock-protected ordered map from name to Metric; DefaultRegistry is a
lazily constructed, process-wide singleton whose one-shot initializer
checks for nil under a mutex on every call. Registry.Counter/Registry.Gauge additionally offer
a fetch-or-create path deduplicated by a per-name sync.Map of mutexes, so
concurrent first-time callers never construct two metrics under the same
name.

How it works (high level)

 1. Instrumented code resolves a Cell via Counter.Add/Inc or Gauge.Set/Inc/Dec,
    which validates the supplied labels against the metric's declared schema.
    A schema mismatch returns a dummy cell: every mutation on it logs and
    no-ops rather than panicking production code.

 2. The scrape handler (HandleScrape) walks a Registry's metrics in name
    order and renders each metric's cells in ascending label-clause order,
    for deterministic text output.

 3. StatsdExporter runs its emit cycle on a PeriodicTask: it snapshots each
    cell's value and last-changed timestamp, filters out cells that have not
    changed since the previous emission while their last change is still
    inside the recency window (unchanged cells older than the window are
    sent again), formats one UDP line per surviving cell, and sends them through a Backend (UDPBackend by
    default).

Examples

	reg := metrics.DefaultRegistry()
	requests, _ := reg.Counter("requests_total", metrics.LabelSchema{
	    "method": metrics.LabelString,
	})
	requests.Inc(metrics.StringLabel("method", "GET"))

	body, contentType := metrics.HandleScrape(reg)
	_ = contentType
	_ = body

	exporter := metrics.NewStatsdExporter()
	_ = exporter.Start()
	defer exporter.Stop()

# Build and test

- Run unit tests:

	go test ./...

- Run with the race detector:

	go test -race ./...

# Notes

- Cell value and last-changed timestamp are updated via two independent
atomics, not a single compound write. Downstream monitoring tolerates
sub-second skew; this is a deliberate performance trade, not a defect.

- Histograms, remote-write protocols, persistent state across restarts, and
cross-process aggregation are out of scope.
*/
package metrics
