package featurespace

import (
	"log/slog"

	"github.com/cmunell/featurespace/blobstore"
	"github.com/cmunell/featurespace/feature"
	"github.com/cmunell/featurespace/grammar"
	"github.com/cmunell/featurespace/resource"
)

type options struct {
	logger     *Logger
	metrics    MetricsCollector
	generators *feature.Registry
	rules      *grammar.Registry
	store      blobstore.Store
	rc         *resource.Controller
}

// Option configures a Pipeline.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := featurespace.NewJSONLogger(slog.LevelInfo)
//	p, _ := featurespace.New(ctx, cfg, featurespace.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for fitting, caching,
// expansion and training. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &featurespace.BasicMetricsCollector{}
//	p, _ := featurespace.New(ctx, cfg, featurespace.WithMetricsCollector(metrics))
//	// ... train ...
//	stats := metrics.GetStats()
//	fmt.Printf("Iterations: %d, cache hit rate: %.2f\n", stats.IterationCount, stats.CacheHitRate())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithRegistries sets the generator and rule registries used to build and
// restore components. Nil registries keep the defaults.
func WithRegistries(gens *feature.Registry, rules *grammar.Registry) Option {
	return func(o *options) {
		if gens != nil {
			o.generators = gens
		}
		if rules != nil {
			o.rules = rules
		}
	}
}

// WithStore overrides the store opened from the storage configuration.
func WithStore(s blobstore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithResourceController overrides the controller built from the resource
// configuration.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metrics:    NoopMetricsCollector{},
		logger:     NoopLogger(),
		generators: feature.DefaultRegistry(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.rules == nil {
		o.rules = grammar.DefaultRegistry(o.generators)
	}
	return o
}
