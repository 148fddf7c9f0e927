// ABOUTME: In-memory Telemetry that keeps every histogram and counter sample it is handed
// ABOUTME: Lets component tests assert on the metric names, values and attributes they emit

package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HistogramSample is one value passed to RecordHistogram.
type HistogramSample struct {
	Name  string
	Value float64
	Attrs []attribute.KeyValue
}

// CounterSample is one increment passed to RecordCounter.
type CounterSample struct {
	Name  string
	Value int64
	Attrs []attribute.KeyValue
}

// Recorder keeps samples in memory instead of exporting them. Spans are not
// recorded. It is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	histograms []HistogramSample
	counters   []CounterSample
}

var _ Telemetry = (*Recorder)(nil)

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms = append(r.histograms, HistogramSample{Name: name, Value: value, Attrs: attrs})
}

func (r *Recorder) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, CounterSample{Name: name, Value: value, Attrs: attrs})
}

func (r *Recorder) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (r *Recorder) Shutdown(ctx context.Context) error {
	return nil
}

// Histogram returns the first sample recorded under name.
func (r *Recorder) Histogram(name string) (HistogramSample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.histograms {
		if h.Name == name {
			return h, true
		}
	}
	return HistogramSample{}, false
}

// CounterTotal sums every increment recorded under name. The bool is false
// when the counter was never touched.
func (r *Recorder) CounterTotal(name string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	found := false
	for _, c := range r.counters {
		if c.Name == name {
			total += c.Value
			found = true
		}
	}
	return total, found
}

// HasAttr reports whether attrs holds key with value.
func HasAttr(attrs []attribute.KeyValue, key string, value attribute.Value) bool {
	for _, a := range attrs {
		if string(a.Key) == key && a.Value == value {
			return true
		}
	}
	return false
}
