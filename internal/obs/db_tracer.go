package obs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

type queryKey struct{}

type inflightQuery struct {
	span  trace.Span
	op    string
	start time.Time
}

// QueryTracer is the pgx.QueryTracer of the connection pool. Every statement
// gets a client span and, when Duration is set, a latency observation labelled
// by SQL verb and outcome. pgx.ErrNoRows is an outcome, not a failure.
type QueryTracer struct {
	Duration *prometheus.HistogramVec
}

// NewQueryTracer registers db_query_duration_seconds on reg.
func NewQueryTracer(namespace string, reg prometheus.Registerer) *QueryTracer {
	return &QueryTracer{Duration: Register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Postgres statement latency by SQL verb and outcome.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "outcome"}))}
}

// TraceQueryStart opens the span for one statement.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlVerb(data.SQL)
	ctx, span := otel.Tracer("github.com/noah-isme/pcquote-api/db").Start(ctx, "pg "+strings.ToLower(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", clipStatement(data.SQL)),
		))
	return context.WithValue(ctx, queryKey{}, &inflightQuery{span: span, op: op, start: time.Now()})
}

// TraceQueryEnd closes the span opened by TraceQueryStart.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	q, ok := ctx.Value(queryKey{}).(*inflightQuery)
	if !ok {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(data.Err, pgx.ErrNoRows):
		outcome = "no_rows"
	case data.Err != nil:
		outcome = "error"
		q.span.RecordError(data.Err)
		q.span.SetStatus(codes.Error, data.Err.Error())
	default:
		q.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	q.span.End()

	if t != nil && t.Duration != nil {
		t.Duration.WithLabelValues(q.op, outcome).Observe(time.Since(q.start).Seconds())
	}
}

// sqlVerb is the upper-cased first keyword; CTEs report as WITH.
func sqlVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "QUERY"
	}
	return strings.ToUpper(fields[0])
}

func clipStatement(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > maxStatementLen {
		return s[:maxStatementLen] + "..."
	}
	return s
}
