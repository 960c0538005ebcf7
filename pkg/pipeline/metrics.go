package pipeline

import (
	"runtime"
	"sync"
	"time"
)

// StageMetric records one stage execution. Entries are append-only: a
// re-run pipeline accumulates history rather than overwriting it.
type StageMetric struct {
	Stage       string
	Duration    time.Duration
	HeapAlloc   uint64
	HeapObjects uint64
}

// Metrics aggregates timings for a pipeline
type Metrics struct {
	mu     sync.Mutex
	start  time.Time
	end    time.Time
	stages []StageMetric
}

func newMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = time.Now()
}

func (m *Metrics) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.end = time.Now()
}

func (m *Metrics) record(stage string, d time.Duration) StageMetric {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	metric := StageMetric{
		Stage:       stage,
		Duration:    d,
		HeapAlloc:   ms.HeapAlloc,
		HeapObjects: ms.HeapObjects,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, metric)
	return metric
}

// Duration returns the wall time of the run, or the elapsed time so far
// for a run still in progress
func (m *Metrics) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.start.IsZero() {
		return 0
	}
	if m.end.IsZero() {
		return time.Since(m.start)
	}
	return m.end.Sub(m.start)
}

// Stages returns a copy of the recorded stage metrics
func (m *Metrics) Stages() []StageMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]StageMetric, len(m.stages))
	copy(out, m.stages)
	return out
}

// StageTimings returns total duration per stage name
func (m *Metrics) StageTimings() map[string]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]time.Duration, len(m.stages))
	for _, s := range m.stages {
		out[s.Stage] += s.Duration
	}
	return out
}
