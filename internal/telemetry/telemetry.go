// Package telemetry keeps in-process counters and timings for background
// work. Nothing recorded here leaves the process; values are exposed only
// through Snapshot for status endpoints and logs.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Timing aggregates recorded durations for one metric.
type Timing struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total_ns"`
	Last  time.Duration `json:"last_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Registry holds counters and timings keyed by name and tags.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string]*Timing
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string]*Timing),
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the package functions.
func Default() *Registry {
	return defaultRegistry
}

// key renders name{k=v,...} with tags in sorted order.
func key(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	b.WriteByte('}')
	return b.String()
}

// RecordCount adds delta to a counter.
func (r *Registry) RecordCount(name string, delta int, tags map[string]string) {
	r.mu.Lock()
	r.counters[key(name, tags)] += int64(delta)
	r.mu.Unlock()
}

// RecordMetric sets a gauge to value.
func (r *Registry) RecordMetric(name string, value float64, tags map[string]string) {
	r.mu.Lock()
	r.gauges[key(name, tags)] = value
	r.mu.Unlock()
}

// RecordTiming adds one duration sample.
func (r *Registry) RecordTiming(name string, d time.Duration, tags map[string]string) {
	k := key(name, tags)

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timings[k]
	if !ok {
		t = &Timing{}
		r.timings[k] = t
	}
	t.Count++
	t.Total += d
	t.Last = d
	if d > t.Max {
		t.Max = d
	}
}

// Count returns the current value of a counter.
func (r *Registry) Count(name string, tags map[string]string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[key(name, tags)]
}

// Snapshot is a point-in-time copy of a registry.
type Snapshot struct {
	Counters map[string]int64   `json:"counters"`
	Gauges   map[string]float64 `json:"gauges"`
	Timings  map[string]Timing  `json:"timings"`
}

// Snapshot copies the current values.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Counters: make(map[string]int64, len(r.counters)),
		Gauges:   make(map[string]float64, len(r.gauges)),
		Timings:  make(map[string]Timing, len(r.timings)),
	}
	for k, v := range r.counters {
		s.Counters[k] = v
	}
	for k, v := range r.gauges {
		s.Gauges[k] = v
	}
	for k, v := range r.timings {
		s.Timings[k] = *v
	}
	return s
}

// Reset clears every value.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.counters = make(map[string]int64)
	r.gauges = make(map[string]float64)
	r.timings = make(map[string]*Timing)
	r.mu.Unlock()
}

// =====================================================
// Package-level helpers on the default registry
// =====================================================

// RecordCount records a counter increment.
func RecordCount(name string, delta int, tags map[string]string) {
	defaultRegistry.RecordCount(name, delta, tags)
}

// RecordMetric records a gauge value.
func RecordMetric(name string, value float64, tags map[string]string) {
	defaultRegistry.RecordMetric(name, value, tags)
}

// RecordTiming records a timing duration.
func RecordTiming(name string, d time.Duration, tags map[string]string) {
	defaultRegistry.RecordTiming(name, d, tags)
}

// Since records the time elapsed since start.
func Since(name string, start time.Time, tags map[string]string) {
	defaultRegistry.RecordTiming(name, time.Since(start), tags)
}
