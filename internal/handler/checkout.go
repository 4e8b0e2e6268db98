package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/velo-till/internal/domain/checkout"
)

type paymentBody struct {
	Method       string `json:"method" validate:"required,oneof=cash card check sumup installment"`
	Installments *int   `json:"installments"`
}

func (b *paymentBody) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "method":
			v, err := d.Str()
			b.Method = v
			return err
		case "installments":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Int()
			b.Installments = &v
			return err
		default:
			return d.Skip()
		}
	})
}

// SetPayment changes the payment method. Installments default to the
// previous choice, or to the minimum, when paying in installments.
func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if err := readBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	method, err := checkout.ParsePaymentMethod(body.Method)
	if err != nil {
		fail(w, r, err)
		return
	}

	pay := checkout.Payment{Method: method, Installments: 1}
	if method == checkout.PaymentInstallment {
		switch prev := h.session.Summary().Payment; {
		case body.Installments != nil:
			pay.Installments = *body.Installments
		case prev.Installments >= checkout.MinInstallments:
			pay.Installments = prev.Installments
		default:
			pay.Installments = checkout.MinInstallments
		}
	}

	if err := h.session.SetPayment(pay); err != nil {
		fail(w, r, err)
		return
	}
	h.GetCart(w, r)
}

// Checkout submits the sale, generates and downloads the invoice.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.Checkout(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Int64(res.Order.ID) })
					strField(e, "order_number", res.Order.Number)
					e.Field("invoice", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("id", func(e *jx.Encoder) { e.Int64(res.Order.Invoice.ID) })
							strField(e, "invoice_number", res.Order.Invoice.Number)
						})
					})
				})
			})
			strField(e, "file_name", res.FileName)
			strField(e, "location", res.Location)
			e.Field("delivery_error", func(e *jx.Encoder) {
				if res.DeliveryErr == nil {
					e.Null()
					return
				}
				e.Str(res.DeliveryErr.Error())
			})
		})
	})
}
