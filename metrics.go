package featurespace

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// A MetricsCollector satisfies the narrow recorders of the featureset, grammar
// and train packages and is handed to them by the Pipeline.
type MetricsCollector interface {
	// RecordFit is called after each generator fit with its vocabulary size.
	RecordFit(generator string, size int, duration time.Duration, err error)

	// RecordCache is called on every cached vector lookup.
	RecordCache(hit bool)

	// RecordExpansion is called after each expanded feature with the number of
	// new indices and of edges to already allocated ones.
	RecordExpansion(parent, added, reused int, duration time.Duration)

	// RecordIteration is called after each optimizer step.
	RecordIteration(step int, loss, delta float64, size int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFit(string, int, time.Duration, error)               {}
func (NoopMetricsCollector) RecordCache(bool)                                          {}
func (NoopMetricsCollector) RecordExpansion(int, int, int, time.Duration)              {}
func (NoopMetricsCollector) RecordIteration(int, float64, float64, int, time.Duration) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FitCount        atomic.Int64
	FitErrors       atomic.Int64
	FitTotalNanos   atomic.Int64
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64
	ExpansionCount  atomic.Int64
	ExpansionAdded  atomic.Int64
	ExpansionReused atomic.Int64
	IterationCount  atomic.Int64
	IterationNanos  atomic.Int64
	// lastLoss holds the float64 bits of the most recent loss.
	lastLoss atomic.Uint64
	MaxSize  atomic.Int64
}

// RecordFit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFit(_ string, _ int, duration time.Duration, err error) {
	b.FitCount.Add(1)
	b.FitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FitErrors.Add(1)
	}
}

// RecordCache implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCache(hit bool) {
	if hit {
		b.CacheHits.Add(1)
	} else {
		b.CacheMisses.Add(1)
	}
}

// RecordExpansion implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExpansion(_, added, reused int, _ time.Duration) {
	b.ExpansionCount.Add(1)
	b.ExpansionAdded.Add(int64(added))
	b.ExpansionReused.Add(int64(reused))
}

// RecordIteration implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIteration(_ int, loss, _ float64, size int, duration time.Duration) {
	b.IterationCount.Add(1)
	b.IterationNanos.Add(duration.Nanoseconds())
	b.lastLoss.Store(math.Float64bits(loss))
	for {
		cur := b.MaxSize.Load()
		if int64(size) <= cur || b.MaxSize.CompareAndSwap(cur, int64(size)) {
			return
		}
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		FitCount:        b.FitCount.Load(),
		FitErrors:       b.FitErrors.Load(),
		CacheHits:       b.CacheHits.Load(),
		CacheMisses:     b.CacheMisses.Load(),
		ExpansionCount:  b.ExpansionCount.Load(),
		ExpansionAdded:  b.ExpansionAdded.Load(),
		ExpansionReused: b.ExpansionReused.Load(),
		IterationCount:  b.IterationCount.Load(),
		LastLoss:        math.Float64frombits(b.lastLoss.Load()),
		MaxSize:         b.MaxSize.Load(),
	}
	if s.FitCount > 0 {
		s.FitAvgNanos = b.FitTotalNanos.Load() / s.FitCount
	}
	if s.IterationCount > 0 {
		s.IterationAvgNanos = b.IterationNanos.Load() / s.IterationCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FitCount          int64
	FitErrors         int64
	FitAvgNanos       int64
	CacheHits         int64
	CacheMisses       int64
	ExpansionCount    int64
	ExpansionAdded    int64
	ExpansionReused   int64
	IterationCount    int64
	IterationAvgNanos int64
	LastLoss          float64
	MaxSize           int64
}

// CacheHitRate returns hits/(hits+misses), 0 without lookups.
func (s BasicMetricsStats) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
