package oak

import "github.com/oakdb/oak/resource"

// options holds store-wide configuration assembled from Option values.
type options struct {
	logger         *Logger
	metrics        MetricsCollector
	caseSensitive  bool
	streamWorkers  int
	builderInitial int
	builderCeiling int
	readerScratch  int
	resources      *resource.Controller
}

// Option configures store construction.
//
// Options exist to avoid exploding the API surface with constructor
// variants; unset options fall back to conservative defaults.
type Option func(*options)

// WithLogger configures the store logger. If nil is passed, logging is
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures the metrics sink. If nil is passed, the
// no-op collector is used.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithCaseSensitive sets the store-wide default for string conditions.
// Per-call overrides on individual conditions take precedence.
//
// The default is case sensitive.
func WithCaseSensitive(sensitive bool) Option {
	return func(o *options) {
		o.caseSensitive = sensitive
	}
}

// WithResourceController attaches a resource controller. Buffer growth is
// accounted against it and isolated stream workers respect its worker
// budget. A nil controller tracks nothing and allows everything.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.resources = c
	}
}

// WithStreamWorkers bounds the number of concurrently running isolated
// stream workers. Values < 1 fall back to 1.
func WithStreamWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.streamWorkers = n
	}
}

// WithBuilderBuffer sizes the reusable encode buffer: its initial capacity
// and the ceiling past which it is released after an oversized session.
func WithBuilderBuffer(initial, ceiling int) Option {
	return func(o *options) {
		o.builderInitial = initial
		o.builderCeiling = ceiling
	}
}

// WithReaderScratch sizes the decode scratch buffer, which doubles as the
// copy/zero-copy crossover threshold.
func WithReaderScratch(size int) Option {
	return func(o *options) {
		o.readerScratch = size
	}
}

func defaultOptions() options {
	return options{
		logger:        NoopLogger(),
		metrics:       NoopMetricsCollector{},
		caseSensitive: true,
		streamWorkers: 1,
	}
}
