package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "wisefido-discharge-board"

// Metrics 出院看板指标. A nil *Metrics records nothing.
type Metrics struct {
	BoardRebuilds       metric.Int64Counter
	BoardRebuildLatency metric.Float64Histogram
	Escalations         metric.Int64Counter
	RejectedCompletions metric.Int64Counter
	RequestTransitions  metric.Int64Counter
	HTTPRequests        metric.Int64Counter
	HTTPLatency         metric.Float64Histogram
}

// InitMetrics registers the instruments on the global meter provider.
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(meterName))
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	rebuilds, err := meter.Int64Counter("discharge_board.rebuild.count",
		metric.WithDescription("Number of board rebuilds"))
	if err != nil {
		return nil, err
	}
	rebuildLatency, err := meter.Float64Histogram("discharge_board.rebuild.duration",
		metric.WithDescription("Board rebuild duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	escalations, err := meter.Int64Counter("discharge_board.escalation.count",
		metric.WithDescription("Overdue discharge alerts sent, per sink"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("discharge_board.completion.rejected",
		metric.WithDescription("Completions rejected for a missing justification"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("discharge_board.request.transitions",
		metric.WithDescription("Discharge request state changes"))
	if err != nil {
		return nil, err
	}
	httpRequests, err := meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Number of HTTP requests"))
	if err != nil {
		return nil, err
	}
	httpLatency, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		BoardRebuilds:       rebuilds,
		BoardRebuildLatency: rebuildLatency,
		Escalations:         escalations,
		RejectedCompletions: rejected,
		RequestTransitions:  transitions,
		HTTPRequests:        httpRequests,
		HTTPLatency:         httpLatency,
	}, nil
}

// RecordRebuild trigger is startup, poll, cache_miss or the change event type
func (m *Metrics) RecordRebuild(ctx context.Context, trigger string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.Bool("error", err != nil),
	)
	m.BoardRebuilds.Add(ctx, 1, attrs)
	m.BoardRebuildLatency.Record(ctx, float64(d.Microseconds())/1000, attrs)
}

func (m *Metrics) RecordEscalation(ctx context.Context, sink string, err error) {
	if m == nil {
		return
	}
	m.Escalations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.Bool("error", err != nil),
	))
}

func (m *Metrics) RecordRejectedCompletion(ctx context.Context, department string) {
	if m == nil {
		return
	}
	m.RejectedCompletions.Add(ctx, 1, metric.WithAttributes(attribute.String("department", department)))
}

func (m *Metrics) RecordTransition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.RequestTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.HTTPRequests.Add(ctx, 1, attrs)
	m.HTTPLatency.Record(ctx, float64(d.Milliseconds()), attrs)
}
