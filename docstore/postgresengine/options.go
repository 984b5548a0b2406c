package postgresengine

import (
	"github.com/openshelf/lending-engine-go/docstore"
)

// Logger is the logging port accepted by WithLogger; see docstore.Logger.
type Logger = docstore.Logger

// ContextualLogger is the context-aware logging port; see docstore.ContextualLogger.
type ContextualLogger = docstore.ContextualLogger

// MetricsCollector is the metrics port accepted by WithMetrics; see docstore.MetricsCollector.
type MetricsCollector = docstore.MetricsCollector

// TracingCollector is the tracing port accepted by WithTracing; see docstore.TracingCollector.
type TracingCollector = docstore.TracingCollector

// SpanContext represents an active tracing span; see docstore.SpanContext.
type SpanContext = docstore.SpanContext

// Option defines a functional option for configuring DocumentStore.
type Option func(*DocumentStore) error

// WithTableName sets the documents table name for the DocumentStore.
func WithTableName(tableName string) Option {
	return func(ds *DocumentStore) error {
		if tableName == "" {
			return docstore.ErrEmptyTableName
		}

		ds.documentTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the DocumentStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: document counts, durations, concurrency conflicts (production-safe)
// Warn level: non-critical issues like rollback/cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(ds *DocumentStore) error {
		ds.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the DocumentStore.
// The contextual logger receives log messages with context information including
// automatic trace/span correlation when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(ds *DocumentStore) error {
		ds.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the DocumentStore.
// The collector receives load/list/commit durations, document counts,
// concurrency conflicts, and database errors.
func WithMetrics(collector MetricsCollector) Option {
	return func(ds *DocumentStore) error {
		ds.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the DocumentStore.
// The collector receives span creation for load/list/commit operations,
// context propagation, and error tracking.
func WithTracing(collector TracingCollector) Option {
	return func(ds *DocumentStore) error {
		ds.tracingCollector = collector
		return nil
	}
}
