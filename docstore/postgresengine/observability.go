package postgresengine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/openshelf/lending-engine-go/docstore"
)

const (
	metricLoadDuration         = "docstore_load_duration_seconds"
	metricListDuration         = "docstore_list_duration_seconds"
	metricCommitDuration       = "docstore_commit_duration_seconds"
	metricConcurrencyConflicts = "docstore_concurrency_conflicts_total"

	spanAttrOperation = "operation"
	labelStatus       = "status"
	labelConflictType = "conflict_type"

	statusSuccess  = "success"
	statusError    = "error"
	statusNotFound = "not_found"
	statusConflict = "conflict"
)

// logQueryWithDuration logs SQL statements with execution time at debug level.
// The contextual logger takes precedence so trace correlation is preserved.
func (ds *DocumentStore) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if ds.contextualLogger != nil {
		ds.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
		return
	}

	if ds.logger != nil {
		ds.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (ds *DocumentStore) logOperation(ctx context.Context, action string, args ...any) {
	if ds.contextualLogger != nil {
		ds.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
		return
	}

	if ds.logger != nil {
		ds.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level.
func (ds *DocumentStore) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if ds.contextualLogger != nil {
		ds.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if ds.logger != nil {
		ds.logger.Error(message, allArgs...)
	}
}

// logWarn logs non-critical issues at the warn level.
func (ds *DocumentStore) logWarn(ctx context.Context, message string, err error) {
	if ds.contextualLogger != nil {
		ds.contextualLogger.WarnContext(ctx, message, logAttrError, err.Error())
		return
	}

	if ds.logger != nil {
		ds.logger.Warn(message, logAttrError, err.Error())
	}
}

// recordDurationMetricsContext records duration metrics with context if the collector supports it.
func (ds *DocumentStore) recordDurationMetricsContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	if ds.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       status,
	}

	if contextualCollector, ok := ds.metricsCollector.(docstore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
	} else {
		ds.metricsCollector.RecordDuration(metricName, duration, labels)
	}
}

// recordConflictMetrics counts concurrency conflicts and duplicate-insert collisions.
func (ds *DocumentStore) recordConflictMetrics(ctx context.Context, err error) {
	if ds.metricsCollector == nil {
		return
	}

	if !errors.Is(err, docstore.ErrConcurrencyConflict) && !errors.Is(err, docstore.ErrDuplicateDocument) {
		return
	}

	labels := map[string]string{
		spanAttrOperation: logActionCommit,
		labelConflictType: "concurrency",
	}

	if contextualCollector, ok := ds.metricsCollector.(docstore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricConcurrencyConflicts, labels)
	} else {
		ds.metricsCollector.IncrementCounter(metricConcurrencyConflicts, labels)
	}
}

// startTraceSpan starts a tracing span if the tracing collector is configured.
func (ds *DocumentStore) startTraceSpan(ctx context.Context, operation string, attrs map[string]string) (context.Context, SpanContext) {
	if ds.tracingCollector == nil {
		return ctx, nil
	}

	allAttrs := map[string]string{spanAttrOperation: operation}
	for key, value := range attrs {
		allAttrs[key] = value
	}

	return ds.tracingCollector.StartSpan(ctx, "docstore."+operation, allAttrs)
}

// finishTraceSpan finishes a tracing span with the given status if one was started.
func (ds *DocumentStore) finishTraceSpan(span SpanContext, status string) {
	if ds.tracingCollector != nil && span != nil {
		ds.tracingCollector.FinishSpan(span, status, nil)
	}
}

// statusFor maps a commit error to a span status string.
func statusFor(err error) string {
	switch {
	case errors.Is(err, docstore.ErrConcurrencyConflict), errors.Is(err, docstore.ErrDuplicateDocument):
		return statusConflict
	default:
		return statusError
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
