package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanMetrics records every ended span as a duration sample, so payout
// transaction spans show up on /metrics through the prometheus exporter.
type spanMetrics struct {
	duration otelmetric.Float64Histogram
}

func newSpanMetrics(meter otelmetric.Meter) (*spanMetrics, error) {
	h, err := meter.Float64Histogram(
		"spans.duration",
		otelmetric.WithDescription("Duration of traced operations"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &spanMetrics{duration: h}, nil
}

func (p *spanMetrics) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *spanMetrics) OnEnd(s sdktrace.ReadOnlySpan) {
	status := "ok"
	if s.Status().Code == codes.Error {
		status = "error"
	}
	elapsed := s.EndTime().Sub(s.StartTime())
	p.duration.Record(context.Background(), float64(elapsed.Microseconds())/1000,
		otelmetric.WithAttributes(
			attribute.String("span_name", s.Name()),
			attribute.String("status", status),
		))
}

func (p *spanMetrics) Shutdown(context.Context) error   { return nil }
func (p *spanMetrics) ForceFlush(context.Context) error { return nil }
