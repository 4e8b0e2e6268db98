package erpapi

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/velo-till/internal/domain/checkout"
)

var _ checkout.OrderService = (*OrderService)(nil)

// OrderService implements checkout.OrderService over the orders endpoint.
type OrderService struct {
	c *Client
}

// NewOrderService returns an OrderService using c.
func NewOrderService(c *Client) *OrderService {
	return &OrderService{c: c}
}

// Create submits an order. The back office creates the invoice along with it.
//
// A 2xx answer means the order exists even if its body is unusable; the
// order is then returned with the error whenever its number could be read.
func (s *OrderService) Create(ctx context.Context, req checkout.Request) (*checkout.Order, error) {
	data, err := s.c.do(ctx, http.MethodPost, "/orders/", encodeOrder(req))
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	o, err := decodeOrder(jx.DecodeBytes(data))
	if err != nil {
		return createdOrder(o), errors.Wrap(err, "decode order")
	}
	if o.Invoice.ID == 0 {
		return createdOrder(o), errors.Errorf("order %s has no invoice", o.Number)
	}
	return &o, nil
}

func createdOrder(o checkout.Order) *checkout.Order {
	if o.Number == "" {
		return nil
	}
	return &o
}

func encodeOrder(req checkout.Request) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("client", func(e *jx.Encoder) { e.Int64(req.ClientID) })
		e.Field("store", func(e *jx.Encoder) { e.Str(string(req.Store)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range req.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) { e.Int64(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("unit_price_ht", func(e *jx.Encoder) { encodeDecimal(e, it.UnitExclTax) })
						e.Field("unit_price_ttc", func(e *jx.Encoder) { encodeDecimal(e, it.UnitInclTax) })
						e.Field("tva_rate", func(e *jx.Encoder) { encodeDecimal(e, it.TaxRate) })
					})
				}
			})
		})
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(req.PaymentMethod)) })
		e.Field("installments", func(e *jx.Encoder) { e.Int(req.Installments) })
	})
	return e.Bytes()
}

// decodeOrder returns the fields read so far along with any error.
func decodeOrder(d *jx.Decoder) (checkout.Order, error) {
	var o checkout.Order
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			o.ID, err = decodeInt(d)
		case "order_number":
			o.Number, err = decodeString(d)
		case "invoice":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				var err error
				switch string(key) {
				case "id":
					o.Invoice.ID, err = decodeInt(d)
				case "invoice_number":
					o.Invoice.Number, err = decodeString(d)
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return o, err
}
