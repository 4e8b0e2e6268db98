package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Checkout outcomes recorded on the outcome counter.
const (
	outcomeSucceeded     = "succeeded"
	outcomeMissingClient = "missing_client"
	outcomeEmptyCart     = "empty_cart"
	outcomeInProgress    = "in_progress"
	outcomeOrderFailed   = "order_failed"
	outcomeInvoiceFailed = "invoice_failed"
	outcomeFetchFailed   = "document_failed"
	outcomeAbandoned     = "abandoned"
	outcomeError         = "error"
)

type metrics struct {
	checkouts  metric.Int64Counter
	duration   metric.Float64Histogram
	steps      metric.Float64Histogram
	deliveries metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	var (
		m   metrics
		err error
	)
	if m.checkouts, err = meter.Int64Counter("till.checkout.count",
		metric.WithDescription("Checkout attempts by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout counter")
	}
	if m.duration, err = meter.Float64Histogram("till.checkout.duration",
		metric.WithDescription("Duration of checkout runs"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, "checkout duration")
	}
	if m.steps, err = meter.Float64Histogram("till.checkout.step.duration",
		metric.WithDescription("Duration of individual checkout steps"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, "step duration")
	}
	if m.deliveries, err = meter.Int64Counter("till.checkout.delivery_failures",
		metric.WithDescription("Invoices that could not be saved locally"),
	); err != nil {
		return nil, errors.Wrap(err, "delivery counter")
	}
	return &m, nil
}

func (m *metrics) recordOutcome(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.checkouts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *metrics) recordStep(ctx context.Context, step Step, elapsed time.Duration, err error) {
	m.steps.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("step", string(step)),
		attribute.Bool("error", err != nil),
	))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSucceeded
	case errors.Is(err, ErrMissingClient):
		return outcomeMissingClient
	case errors.Is(err, ErrEmptyCart):
		return outcomeEmptyCart
	case errors.Is(err, ErrInProgress):
		return outcomeInProgress
	case errors.Is(err, ErrAbandoned):
		return outcomeAbandoned
	case errors.Is(err, ErrOrderSubmission):
		return outcomeOrderFailed
	case errors.Is(err, ErrInvoiceGeneration):
		return outcomeInvoiceFailed
	case errors.Is(err, ErrDocumentFetch):
		return outcomeFetchFailed
	default:
		return outcomeError
	}
}
