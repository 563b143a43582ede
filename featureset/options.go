package featureset

import (
	"io"
	"log/slog"
	"time"

	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/resource"
)

// Recorder receives feature-set metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordFit(generator string, size int, duration time.Duration, err error)
	RecordCache(hit bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordFit(string, int, time.Duration, error) {}
func (noopRecorder) RecordCache(bool)                            {}

type options struct {
	logger        *slog.Logger
	workers       int
	rc            *resource.Controller
	cacheCapacity int64
	metrics       Recorder
	registry      *feature.Registry
}

func defaultOptions() options {
	return options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: 1,
		metrics: noopRecorder{},
	}
}

// Option configures a FeatureSet.
type Option func(*options)

// WithLogger sets the logger. If nil, logging is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxWorkers sets the parallelism of Fit and Precompute.
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithResourceController charges cached vectors to rc's memory budget and
// bounds workers by its worker slots.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithCacheCapacity bounds the bytes held by the vector cache (0 = unbounded).
func WithCacheCapacity(bytes int64) Option {
	return func(o *options) { o.cacheCapacity = bytes }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.metrics = r
		}
	}
}

// WithRegistry sets the generator registry Restore resolves kinds against.
func WithRegistry(r *feature.Registry) Option {
	return func(o *options) { o.registry = r }
}
