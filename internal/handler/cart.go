package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/velo-till/internal/domain/cart"
	"github.com/xenking/velo-till/internal/domain/checkout"
	"github.com/xenking/velo-till/internal/session"
)

// GetCart returns the sale in progress with its totals, payment choice and
// checkout state.
func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request) {
	sum := h.session.Summary()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, sum) })
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearCart(); err != nil {
		fail(w, r, err)
		return
	}
	h.GetCart(w, r)
}

type setStoreBody struct {
	Store string `json:"store" validate:"required,oneof=ville_avray garches"`
}

func (b *setStoreBody) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "store" {
			return d.Skip()
		}
		v, err := d.Str()
		b.Store = v
		return err
	})
}

// SetStore selects the shop of the sale.
func (h *Handler) SetStore(w http.ResponseWriter, r *http.Request) {
	var body setStoreBody
	if err := readBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	store, err := cart.ParseStore(body.Store)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.session.SetStore(store); err != nil {
		fail(w, r, err)
		return
	}
	h.GetCart(w, r)
}

type selectClientBody struct {
	ClientID *int64 `json:"client_id" validate:"omitempty,gt=0"`
}

func (b *selectClientBody) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "client_id" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			b.ClientID = nil
			return d.Null()
		}
		v, err := d.Int64()
		b.ClientID = &v
		return err
	})
}

// SelectClient selects a loaded client, or clears the selection on null.
func (h *Handler) SelectClient(w http.ResponseWriter, r *http.Request) {
	var body selectClientBody
	if err := readBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.session.SelectClient(body.ClientID); err != nil {
		fail(w, r, err)
		return
	}
	h.GetCart(w, r)
}

type addItemBody struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"min=1"`
}

func (b *addItemBody) Decode(d *jx.Decoder) error {
	b.Quantity = 1
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "product_id":
			b.ProductID, err = d.Int64()
		case "quantity":
			b.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}

// AddItem adds units of a loaded product; quantity defaults to 1.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body addItemBody
	if err := readBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.session.AddItem(body.ProductID, body.Quantity); err != nil {
		fail(w, r, err)
		return
	}
	h.GetCart(w, r)
}

type scanBody struct {
	Barcode string `json:"barcode" validate:"required,max=100"`
}

func (b *scanBody) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "barcode" {
			return d.Skip()
		}
		v, err := d.Str()
		b.Barcode = v
		return err
	})
}

// Scan adds one unit of the product carrying the scanned barcode.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var body scanBody
	if err := readBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	if _, err := h.session.Scan(r.Context(), body.Barcode); err != nil {
		fail(w, r, upstream(err))
		return
	}
	h.GetCart(w, r)
}

type quantityBody struct {
	Quantity int `json:"quantity"`
}

func (b *quantityBody) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		b.Quantity = v
		return err
	})
}

// UpdateQuantity sets the quantity of a line; values below 1 become 1.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := productIDParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var body quantityBody
	if err := readBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.session.UpdateQuantity(id, body.Quantity); err != nil {
		fail(w, r, err)
		return
	}
	h.GetCart(w, r)
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := productIDParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.session.RemoveItem(id); err != nil {
		fail(w, r, err)
		return
	}
	h.GetCart(w, r)
}

func productIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequestError{msg: "invalid product id"}
	}
	return id, nil
}

func encodeSummary(e *jx.Encoder, sum session.Summary) {
	snap := sum.Cart
	e.Obj(func(e *jx.Encoder) {
		strField(e, "store", string(snap.Store))
		strField(e, "store_label", snap.Store.Label())
		e.Field("client", func(e *jx.Encoder) {
			if snap.Client == nil {
				e.Null()
				return
			}
			encodeClient(e, *snap.Client)
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range snap.Items {
					encodeLine(e, li)
				}
			})
		})
		moneyField(e, "total_ht", snap.TotalExclTax())
		moneyField(e, "total_tva", snap.TaxAmount())
		moneyField(e, "total_ttc", snap.TotalInclTax())
		e.Field("payment", func(e *jx.Encoder) { encodePayment(e, sum) })
		e.Field("checkout", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				strField(e, "state", sum.State.String())
				if sum.LastError != nil {
					strField(e, "error", checkout.UserMessage(sum.LastError))
				}
			})
		})
	})
}

func encodeLine(e *jx.Encoder, li cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(li.Product.ID) })
		strField(e, "name", li.Product.Name)
		strField(e, "reference", li.Product.Reference)
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
		moneyField(e, "unit_price_ht", li.Product.PriceExclTax)
		moneyField(e, "unit_price_ttc", li.Product.PriceInclTax)
		moneyField(e, "tva_rate", li.Product.TaxRate)
		moneyField(e, "total_ttc", li.TotalInclTax())
	})
}

func encodePayment(e *jx.Encoder, sum session.Summary) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "method", string(sum.Payment.Method))
		e.Field("installments", func(e *jx.Encoder) { e.Int(sum.Payment.Count()) })
		e.Field("plan", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, amount := range sum.Plan {
					encodeMoney(e, amount)
				}
			})
		})
	})
}
