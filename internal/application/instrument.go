package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// Instruments carries the tracer, base logger and RED metrics a use case reports to.
type Instruments struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

// NewInstruments resolves instruments from tel, falling back to no-ops.
func NewInstruments(tel observability.Observability, service string) Instruments {
	tel = observability.OrNop(tel)
	metrics := tel.Metrics()
	return Instruments{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

// Logger returns the base logger.
func (in Instruments) Logger() observability.Logger { return in.log }

// Execution tracks one use case run until End.
type Execution struct {
	in      Instruments
	useCase string
	dur     observability.BoundHistogram
	span    trace.Span
	logger  observability.Logger
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Start opens the span "UC.<name>" and a request-scoped logger bound to useCase.
func (in Instruments) Start(ctx context.Context, useCase, name string, attrs ...attribute.KeyValue) (context.Context, *Execution) {
	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, spanPrefix+name, attrs...)
	ctx = logctx.With(ctx, logger)
	return ctx, &Execution{
		in:      in,
		useCase: useCase,
		dur:     in.durHistogram.Bind(observability.L("use_case", useCase)),
		span:    span,
		logger:  logger,
		start:   time.Now(),
		outcome: observability.OutcomeSuccess,
		status:  "OK",
	}
}

// Logger is the request-scoped logger of this run.
func (e *Execution) Logger() observability.Logger { return e.logger }

// Span is the use case span.
func (e *Execution) Span() trace.Span { return e.span }

// Fail marks the run as failed with a stable status code.
func (e *Execution) Fail(status string) {
	e.outcome, e.status = observability.OutcomeError, status
}

// SetStatus overrides the status text of a successful run.
func (e *Execution) SetStatus(status string) { e.status = status }

// With adds fields to the use_case_done line.
func (e *Execution) With(fields ...observability.Field) { e.fields = append(e.fields, fields...) }

// End records span status, metrics and the use_case_done log line.
func (e *Execution) End(ctx context.Context, err error) {
	lat := time.Since(e.start).Seconds()
	if err != nil && e.outcome == observability.OutcomeSuccess {
		e.Fail("ERROR")
	}

	if e.span != nil {
		if err != nil {
			e.span.RecordError(err)
			e.span.SetStatus(codes.Error, e.status)
		} else {
			e.span.SetStatus(codes.Ok, e.status)
		}
		e.span.End()
	}

	e.in.reqCounter.Add(1,
		observability.L("use_case", e.useCase),
		observability.L("outcome", e.outcome),
	)
	e.dur.Observe(lat)

	fields := append([]observability.Field{
		observability.F("outcome", e.outcome),
		observability.F("status", e.status),
		observability.F("latency_seconds", lat),
	}, e.fields...)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	e.logger.Info("use_case_done", fields...)
}
