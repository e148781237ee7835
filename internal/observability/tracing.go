package observability

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartDBSpan starts a span for database operations
func StartDBSpan(ctx context.Context, system, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("DB %s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// TraceDB wraps sql.DB with tracing
type TraceDB struct {
	db     *sql.DB
	system string
}

// NewTraceDB creates a traced database wrapper
func NewTraceDB(db *sql.DB, system string) *TraceDB {
	return &TraceDB{db: db, system: system}
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := StartSpan(ctx, "DB Query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	duration := time.Since(start)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := StartSpan(ctx, "DB Exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	duration := time.Since(start)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := StartSpan(ctx, "DB QueryRow",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
	// Note: span.End() should be called after scanning the row
	// This is a limitation of the sql.Row interface

	row := t.db.QueryRowContext(ctx, query, args...)
	span.End()
	return row
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// AgentMetrics holds the agent's domain metrics
type AgentMetrics struct {
	trackingEvents metric.Int64Counter
	syncAttempts   metric.Int64Counter
	deadLetters    metric.Int64Counter
	connectivity   metric.Int64Counter
	captureRecords metric.Int64Counter
}

var (
	agentMetrics   *AgentMetrics
	agentMetricsMu sync.RWMutex
)

// NewAgentMetrics creates the agent metrics instruments
func NewAgentMetrics() (*AgentMetrics, error) {
	meter := otel.Meter(instrumentationName)

	trackingEvents, err := meter.Int64Counter(
		"fieldsync.tracking.events",
		metric.WithDescription("Time tracking lifecycle events"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, err
	}

	syncAttempts, err := meter.Int64Counter(
		"fieldsync.sync.attempts",
		metric.WithDescription("Outbox mutation delivery attempts"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	deadLetters, err := meter.Int64Counter(
		"fieldsync.sync.dead_letters",
		metric.WithDescription("Mutations moved to the dead letter set"),
		metric.WithUnit("{mutations}"),
	)
	if err != nil {
		return nil, err
	}

	connectivity, err := meter.Int64Counter(
		"fieldsync.connectivity.transitions",
		metric.WithDescription("Debounced connectivity transitions"),
		metric.WithUnit("{transitions}"),
	)
	if err != nil {
		return nil, err
	}

	captureRecords, err := meter.Int64Counter(
		"fieldsync.capture.records",
		metric.WithDescription("Field records captured on the device"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		trackingEvents: trackingEvents,
		syncAttempts:   syncAttempts,
		deadLetters:    deadLetters,
		connectivity:   connectivity,
		captureRecords: captureRecords,
	}, nil
}

// InitAgentMetrics installs the package-level metrics instance. The record
// helpers below are no-ops until this is called, so tests and tools that
// never initialize telemetry pay nothing.
func InitAgentMetrics() error {
	m, err := NewAgentMetrics()
	if err != nil {
		return err
	}
	agentMetricsMu.Lock()
	agentMetrics = m
	agentMetricsMu.Unlock()
	return nil
}

func metrics() *AgentMetrics {
	agentMetricsMu.RLock()
	defer agentMetricsMu.RUnlock()
	return agentMetrics
}

// RecordTrackingEvent records a time tracking lifecycle event
func RecordTrackingEvent(ctx context.Context, event string) {
	if m := metrics(); m != nil {
		m.trackingEvents.Add(ctx, 1, metric.WithAttributes(
			attribute.String("event", event),
		))
	}
}

// RecordSyncAttempt records one delivery attempt and its outcome
func RecordSyncAttempt(ctx context.Context, kind, outcome string) {
	if m := metrics(); m != nil {
		m.syncAttempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("entity_kind", kind),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordDeadLetter records a mutation entering the dead letter set
func RecordDeadLetter(ctx context.Context, kind string) {
	if m := metrics(); m != nil {
		m.deadLetters.Add(ctx, 1, metric.WithAttributes(
			attribute.String("entity_kind", kind),
		))
	}
}

// RecordConnectivityTransition records a debounced online/offline flip
func RecordConnectivityTransition(ctx context.Context, online bool) {
	if m := metrics(); m != nil {
		m.connectivity.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("online", online),
		))
	}
}

// RecordCapture records a field record captured on the device
func RecordCapture(ctx context.Context, kind string) {
	if m := metrics(); m != nil {
		m.captureRecords.Add(ctx, 1, metric.WithAttributes(
			attribute.String("entity_kind", kind),
		))
	}
}
