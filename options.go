package victor

import "log/slog"

type options struct {
	logger              *Logger
	metricsCollector    MetricsCollector
	repairTruncatedTail bool
	tagIndex            bool
}

// Option configures Open behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
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

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithRepairTruncatedTail opts in to truncating a corrupt tail to the
// last well-framed record boundary when the database is opened, instead
// of refusing writes until Clear. A crashed or cancelled append leaves
// such a tail; repair discards only the partial record.
func WithRepairTruncatedTail(repair bool) Option {
	return func(o *options) {
		o.repairTruncatedTail = repair
	}
}

// WithTagIndex enables the in-memory inverted tag index. When enabled,
// the first tag-filtered search builds the index with one scan and later
// filtered searches parse only admissible records. Worth it for corpora
// queried repeatedly with selective filters; pure overhead otherwise.
func WithTagIndex(enabled bool) Option {
	return func(o *options) {
		o.tagIndex = enabled
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		tagIndex:         true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
