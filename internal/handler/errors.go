package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/velo-till/internal/domain/cart"
	"github.com/xenking/velo-till/internal/domain/checkout"
	"github.com/xenking/velo-till/internal/domain/client"
	"github.com/xenking/velo-till/internal/domain/product"
	"github.com/xenking/velo-till/internal/session"
)

// upstreamError marks a failed call to the back office.
type upstreamError struct {
	err error
}

func (e *upstreamError) Error() string { return e.err.Error() }

func (e *upstreamError) Unwrap() error { return e.err }

func upstream(err error) error {
	if err == nil {
		return nil
	}
	return &upstreamError{err: err}
}

// errorStatus maps domain errors to an HTTP status and a message safe to
// show on the till.
func errorStatus(err error) (int, string) {
	var (
		badReq  *badRequestError
		invalid *client.ValidationError
		stepErr *checkout.StepError
		up      *upstreamError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, badReq.msg
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, invalid.Error()
	case errors.Is(err, checkout.ErrMissingClient),
		errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusUnprocessableEntity, checkout.UserMessage(err)
	case errors.Is(err, checkout.ErrInProgress):
		return http.StatusConflict, checkout.UserMessage(err)
	case errors.Is(err, checkout.ErrAbandoned):
		return http.StatusServiceUnavailable, checkout.UserMessage(err)
	case errors.As(err, &stepErr):
		return http.StatusBadGateway, checkout.UserMessage(err)
	case errors.Is(err, session.ErrUnknownProduct),
		errors.Is(err, session.ErrUnknownClient),
		errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, session.ErrInvalidQuantity),
		errors.Is(err, cart.ErrUnknownStore),
		errors.Is(err, checkout.ErrUnknownPaymentMethod),
		errors.Is(err, checkout.ErrInvalidInstallments):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &up):
		return http.StatusBadGateway, "back office request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// rootMessage returns the message of the innermost error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// fail logs server-side failures and writes the error response. Checkout
// failures that left an order behind also carry its number.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	var stepErr *checkout.StepError
	if !errors.As(err, &stepErr) || stepErr.Order == nil {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			strField(e, "message", msg)
			strField(e, "step", string(stepErr.Step))
			strField(e, "order_number", stepErr.Order.Number)
		})
	})
}
