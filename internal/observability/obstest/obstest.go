// Package obstest records telemetry in memory for assertions in tests.
package obstest

import (
	"sort"
	"strings"
	"sync"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Recorder is an Observability whose metrics and logs can be inspected.
type Recorder struct {
	mu     sync.Mutex
	values map[string]float64
	counts map[string]int

	logger observability.Logger
	Logs   *observer.ObservedLogs
}

func New() *Recorder {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Recorder{
		values: make(map[string]float64),
		counts: make(map[string]int),
		logger: zaplogger.Wrap(zap.New(core)),
		Logs:   logs,
	}
}

func (r *Recorder) Tracer() observability.Tracer   { return observability.NopTracer() }
func (r *Recorder) Logger() observability.Logger   { return r.logger }
func (r *Recorder) Metrics() observability.Metrics { return r }

func (r *Recorder) Counter(name observability.MetricKey) observability.Counter {
	return &instrument{r: r, name: string(name)}
}

func (r *Recorder) Histogram(name observability.MetricKey) observability.Histogram {
	return &histogram{instrument{r: r, name: string(name)}}
}

// Value returns the summed counter value (or histogram sum) for name and labels
// given as "key=value" pairs in any order.
func (r *Recorder) Value(name observability.MetricKey, labels ...string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[seriesKey(string(name), labels)]
}

// Count returns how many observations a series received.
func (r *Recorder) Count(name observability.MetricKey, labels ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[seriesKey(string(name), labels)]
}

// Messages returns the log messages written so far, in order.
func (r *Recorder) Messages() []string {
	var out []string
	for _, e := range r.Logs.All() {
		out = append(out, e.Message)
	}
	return out
}

func (r *Recorder) record(name string, v float64, labels []observability.Label) {
	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, l.Key+"="+l.Value)
	}
	key := seriesKey(name, pairs)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] += v
	r.counts[key]++
}

func seriesKey(name string, pairs []string) string {
	sorted := append([]string(nil), pairs...)
	sort.Strings(sorted)
	return name + "{" + strings.Join(sorted, ",") + "}"
}

type instrument struct {
	r    *Recorder
	name string
}

func (i *instrument) Add(d float64, labels ...observability.Label) { i.r.record(i.name, d, labels) }

func (i *instrument) Bind(labels ...observability.Label) observability.BoundCounter {
	return bound{i: i, labels: labels}
}

type histogram struct{ instrument }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.r.record(h.name, v, labels)
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return bound{i: &h.instrument, labels: labels}
}

type bound struct {
	i      *instrument
	labels []observability.Label
}

func (b bound) Add(d float64)     { b.i.r.record(b.i.name, d, b.labels) }
func (b bound) Observe(v float64) { b.i.r.record(b.i.name, v, b.labels) }
