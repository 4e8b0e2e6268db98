package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepError(t *testing.T) {
	cause := errors.New("502 bad gateway")
	err := error(&StepError{Step: StepFetchDocument, Order: newTestOrder(), Err: cause})

	assert.ErrorIs(t, err, ErrDocumentFetch)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvoiceGeneration)
	assert.Equal(t, "invoice download failed (order CMD-20240101-0001): 502 bad gateway", err.Error())

	wrapped := errors.Wrap(err, "checkout")
	var stepErr *StepError
	require.ErrorAs(t, wrapped, &stepErr)
	assert.Equal(t, StepFetchDocument, stepErr.Step)
}

func TestStepError_Abandoned(t *testing.T) {
	err := error(&StepError{
		Step:  StepGenerateInvoice,
		Order: newTestOrder(),
		Err:   errors.Wrap(ErrAbandoned, "generate_invoice: context canceled"),
	})

	assert.ErrorIs(t, err, ErrAbandoned)
	assert.NotErrorIs(t, err, ErrInvoiceGeneration)
	assert.Contains(t, err.Error(), "generate_invoice interrupted (order CMD-20240101-0001)")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"missing client", ErrMissingClient, "Please select a client"},
		{"empty cart", ErrEmptyCart, "The cart is empty"},
		{"in progress", ErrInProgress, "A checkout is already being processed, please wait"},
		{"abandoned", errors.Wrap(ErrAbandoned, "submit_order"), "The checkout was interrupted"},
		{
			"abandoned after order",
			&StepError{Step: StepGenerateInvoice, Order: newTestOrder(), Err: errors.Wrap(ErrAbandoned, "generate_invoice")},
			"The checkout was interrupted after order CMD-20240101-0001 was created; check it in the back office before retrying",
		},
		{
			"order failed",
			&StepError{Step: StepSubmitOrder, Err: context.DeadlineExceeded},
			"The order could not be created, please retry",
		},
		{"other", errors.New("boom"), "Checkout failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, outcomeSucceeded, outcomeOf(nil))
	assert.Equal(t, outcomeEmptyCart, outcomeOf(ErrEmptyCart))
	assert.Equal(t, outcomeInvoiceFailed, outcomeOf(&StepError{Step: StepGenerateInvoice, Err: errors.New("x")}))
	assert.Equal(t, outcomeError, outcomeOf(errors.New("x")))
}

func TestState(t *testing.T) {
	assert.False(t, StateIdle.IsTerminal())
	assert.False(t, StateInFlight.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateSucceeded.IsTerminal())
	assert.Equal(t, "in_flight", StateInFlight.String())
}
