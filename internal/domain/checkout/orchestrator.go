package checkout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/velo-till/internal/domain/cart"
)

const instrumentationName = "github.com/xenking/velo-till/internal/domain/checkout"

// Options configures an Orchestrator.
type Options struct {
	// StepTimeout bounds each network step. Zero leaves steps unbounded.
	StepTimeout    time.Duration
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Orchestrator runs the checkout protocol for one cart: submit the order,
// generate its invoice, download the document, save it and clear the cart.
//
// At most one protocol run is in flight at a time; a concurrent Checkout call
// fails fast with ErrInProgress.
type Orchestrator struct {
	cart     *cart.Cart
	orders   OrderService
	invoices InvoiceService
	saver    DocumentSaver

	stepTimeout time.Duration
	tracer      trace.Tracer
	metrics     *metrics

	// gate serializes the InFlight transition with cart and payment
	// mutations, so none can land between the busy check and the change.
	gate  sync.Mutex
	state atomic.Int32

	mu      sync.Mutex
	payment Payment
	lastErr error
}

// NewOrchestrator creates an Orchestrator for c.
func NewOrchestrator(
	c *cart.Cart,
	orders OrderService,
	invoices InvoiceService,
	saver DocumentSaver,
	opts Options,
) (*Orchestrator, error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}

	m, err := newMetrics(opts.MeterProvider.Meter(instrumentationName))
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}

	return &Orchestrator{
		cart:        c,
		orders:      orders,
		invoices:    invoices,
		saver:       saver,
		stepTimeout: opts.StepTimeout,
		tracer:      opts.TracerProvider.Tracer(instrumentationName),
		metrics:     m,
		payment:     DefaultPayment(),
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Busy reports whether a checkout is in flight.
func (o *Orchestrator) Busy() bool {
	return o.State() == StateInFlight
}

// LastError returns the error of the last finished run, nil after a success.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Payment returns the payment choice for the current sale.
func (o *Orchestrator) Payment() Payment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.payment
}

// SetPayment changes the payment choice. It is rejected while a checkout is
// in flight.
func (o *Orchestrator) SetPayment(p Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return o.Mutate(func() {
		o.mu.Lock()
		o.payment = p
		o.mu.Unlock()
	})
}

// Mutate runs fn unless a checkout is in flight, in which case it returns
// ErrInProgress. No checkout can start while fn runs, so a change made by fn
// is either part of the next snapshot or rejected.
func (o *Orchestrator) Mutate(fn func()) error {
	o.gate.Lock()
	defer o.gate.Unlock()
	if o.Busy() {
		return ErrInProgress
	}
	fn()
	return nil
}

// Checkout runs the protocol on a snapshot of the cart.
//
// Local failures (ErrMissingClient, ErrEmptyCart, ErrInProgress) happen
// before any network call. Remote failures are returned as *StepError; the
// cart and the payment choice are left untouched so the operator can retry.
// On success the cart is cleared and the payment reset to cash.
func (o *Orchestrator) Checkout(ctx context.Context) (*Result, error) {
	if !o.begin() {
		o.metrics.recordOutcome(ctx, outcomeInProgress, 0)
		return nil, ErrInProgress
	}

	start := time.Now()
	id := uuid.New().String()
	lg := zctx.From(ctx).With(zap.String("checkout_id", id))

	ctx, span := o.tracer.Start(ctx, "checkout",
		trace.WithAttributes(attribute.String("checkout.id", id)),
	)
	defer span.End()

	res, err := o.run(ctx, lg)
	o.finish(err)
	o.metrics.recordOutcome(ctx, outcomeOf(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Warn("Checkout failed", zap.Error(err))
		return nil, err
	}

	lg.Info("Checkout completed",
		zap.String("order_number", res.Order.Number),
		zap.String("invoice_number", res.Order.Invoice.Number),
		zap.String("location", res.Location),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, lg *zap.Logger) (*Result, error) {
	snap := o.cart.Snapshot()
	if snap.Client == nil {
		return nil, ErrMissingClient
	}
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	req := NewRequest(snap, o.Payment())
	lg.Info("Submitting order",
		zap.Int64("client_id", req.ClientID),
		zap.String("store", string(req.Store)),
		zap.Int("lines", len(req.Items)),
		zap.String("payment_method", string(req.PaymentMethod)),
		zap.Int("installments", req.Installments),
		zap.Stringer("total_ttc", snap.TotalInclTax()),
	)

	var order *Order
	if err := o.step(ctx, StepSubmitOrder, func(ctx context.Context) (err error) {
		order, err = o.orders.Create(ctx, req)
		return err
	}); err != nil {
		return nil, stepFailure(StepSubmitOrder, order, err)
	}
	lg = lg.With(zap.String("order_number", order.Number))
	lg.Info("Order created", zap.String("invoice_number", order.Invoice.Number))

	if err := o.step(ctx, StepGenerateInvoice, func(ctx context.Context) error {
		return o.invoices.Generate(ctx, order.Invoice.ID)
	}); err != nil {
		return nil, stepFailure(StepGenerateInvoice, order, err)
	}

	var doc *Document
	if err := o.step(ctx, StepFetchDocument, func(ctx context.Context) (err error) {
		doc, err = o.invoices.Download(ctx, order.Invoice)
		return err
	}); err != nil {
		return nil, stepFailure(StepFetchDocument, order, err)
	}

	number := doc.Number
	if number == "" {
		number = order.Invoice.Number
	}
	res := &Result{
		Order:    *order,
		FileName: FileName(number),
	}

	location, err := o.saver.Save(context.WithoutCancel(ctx), res.FileName, doc.Content)
	if err != nil {
		o.metrics.deliveries.Add(ctx, 1)
		lg.Warn("Invoice could not be saved", zap.String("file", res.FileName), zap.Error(err))
		res.DeliveryErr = err
	} else {
		res.Location = location
	}

	o.cart.Clear()
	o.mu.Lock()
	o.payment = DefaultPayment()
	o.mu.Unlock()

	return res, nil
}

// step runs one network call. The call is detached from ctx cancellation so
// an issued request is never aborted; if ctx is done by the time it returns,
// the result is dropped and ErrAbandoned reported.
func (o *Orchestrator) step(ctx context.Context, step Step, fn func(ctx context.Context) error) error {
	stepCtx, cancel := o.stepContext(ctx)
	defer cancel()

	stepCtx, span := o.tracer.Start(stepCtx, "checkout."+string(step))
	defer span.End()

	start := time.Now()
	err := fn(stepCtx)
	o.metrics.recordStep(stepCtx, step, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrapf(ErrAbandoned, "%s: %v", step, ctxErr)
	}
	return err
}

func (o *Orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if o.stepTimeout > 0 {
		return context.WithTimeout(base, o.stepTimeout)
	}
	return context.WithCancel(base)
}

// stepFailure wraps a failed or abandoned step. An order the back office
// already created is kept for reconciliation.
func stepFailure(step Step, order *Order, err error) error {
	if order != nil && order.Number == "" {
		order = nil
	}
	if order == nil && errors.Is(err, ErrAbandoned) {
		return err
	}
	return &StepError{Step: step, Order: order, Err: err}
}

// begin moves the orchestrator to StateInFlight unless it already is.
func (o *Orchestrator) begin() bool {
	o.gate.Lock()
	defer o.gate.Unlock()
	if o.Busy() {
		return false
	}
	o.state.Store(int32(StateInFlight))
	return true
}

func (o *Orchestrator) finish(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()

	if err != nil {
		o.state.Store(int32(StateFailed))
		return
	}
	o.state.Store(int32(StateSucceeded))
}
