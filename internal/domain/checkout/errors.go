package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Local precondition and reentrancy failures. No network call has been made
// when one of these is returned.
var (
	ErrMissingClient = errors.New("no client selected")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrInProgress    = errors.New("checkout already in progress")
)

// Remote step failures, matched through errors.Is on a *StepError.
var (
	ErrOrderSubmission   = errors.New("order submission failed")
	ErrInvoiceGeneration = errors.New("invoice generation failed")
	ErrDocumentFetch     = errors.New("invoice download failed")
)

// ErrAbandoned is returned when the caller went away while a step was in
// flight. The step's response was ignored and the cart left as is.
var ErrAbandoned = errors.New("checkout abandoned")

// Step names a network step of the checkout protocol.
type Step string

const (
	StepSubmitOrder     Step = "submit_order"
	StepGenerateInvoice Step = "generate_invoice"
	StepFetchDocument   Step = "fetch_document"
)

func (s Step) sentinel() error {
	switch s {
	case StepSubmitOrder:
		return ErrOrderSubmission
	case StepGenerateInvoice:
		return ErrInvoiceGeneration
	case StepFetchDocument:
		return ErrDocumentFetch
	default:
		return nil
	}
}

// StepError reports the failure of a network step. Order is set when the
// order had already been created server-side before the failing step.
//
// A StepError wrapping ErrAbandoned reports a run the caller left after the
// order was created; it matches ErrAbandoned but not the step sentinel.
type StepError struct {
	Step  Step
	Order *Order
	Err   error
}

func (e *StepError) abandoned() bool {
	return errors.Is(e.Err, ErrAbandoned)
}

func (e *StepError) Error() string {
	msg := e.Step.sentinel().Error()
	if e.abandoned() {
		msg = fmt.Sprintf("%s interrupted", e.Step)
	}
	if e.Order != nil {
		msg = fmt.Sprintf("%s (order %s)", msg, e.Order.Number)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Is matches the sentinel of the failed step.
func (e *StepError) Is(target error) bool {
	return target != nil && target == e.Step.sentinel() && !e.abandoned()
}

// UserMessage returns the operator-facing text for a checkout error.
func UserMessage(err error) string {
	var stepErr *StepError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingClient):
		return "Please select a client"
	case errors.Is(err, ErrEmptyCart):
		return "The cart is empty"
	case errors.Is(err, ErrInProgress):
		return "A checkout is already being processed, please wait"
	case errors.Is(err, ErrAbandoned) && errors.As(err, &stepErr) && stepErr.Order != nil:
		return fmt.Sprintf("The checkout was interrupted after order %s was created; check it in the back office before retrying",
			stepErr.Order.Number)
	case errors.Is(err, ErrAbandoned):
		return "The checkout was interrupted"
	case errors.As(err, &stepErr) && stepErr.Order != nil:
		return fmt.Sprintf("Order %s was created but its invoice could not be delivered; check it in the back office before retrying",
			stepErr.Order.Number)
	case errors.Is(err, ErrOrderSubmission):
		return "The order could not be created, please retry"
	default:
		return "Checkout failed"
	}
}
