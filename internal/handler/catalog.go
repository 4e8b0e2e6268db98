package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/velo-till/internal/domain/client"
	"github.com/xenking/velo-till/internal/domain/product"
)

// ListProducts searches the loaded catalog by name or reference (?q=).
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.session.Products(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				encodeProduct(e, p)
			}
		})
	})
}

// ListClients searches the loaded clients by name, email or phone (?q=).
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients := h.session.Clients(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range clients {
				encodeClient(e, c)
			}
		})
	})
}

type createClientBody struct {
	req client.CreateRequest
}

func (b *createClientBody) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var (
			dst *string
			err error
		)
		switch string(key) {
		case "first_name":
			dst = &b.req.FirstName
		case "last_name":
			dst = &b.req.LastName
		case "email":
			dst = &b.req.Email
		case "phone":
			dst = &b.req.Phone
		case "address":
			dst = &b.req.Address
		case "city":
			dst = &b.req.City
		case "postal_code":
			dst = &b.req.PostalCode
		default:
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		*dst, err = d.Str()
		return err
	})
}

// CreateClient registers a client and selects it for the sale.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var body createClientBody
	if err := readBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}

	c, err := h.session.CreateClient(r.Context(), body.req)
	if err != nil {
		fail(w, r, upstream(err))
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeClient(e, *c) })
}

// Reload refreshes the product and client lists from the back office.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Load(context.WithoutCancel(r.Context())); err != nil {
		fail(w, r, upstream(err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("products", func(e *jx.Encoder) { e.Int(len(h.session.Products(""))) })
			e.Field("clients", func(e *jx.Encoder) { e.Int(len(h.session.Clients(""))) })
		})
	})
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		strField(e, "name", p.Name)
		strField(e, "reference", p.Reference)
		moneyField(e, "price_ht", p.PriceExclTax)
		moneyField(e, "price_ttc", p.PriceInclTax)
		moneyField(e, "tva_rate", p.TaxRate)
		strField(e, "barcode", p.Barcode)
		e.Field("total_stock", func(e *jx.Encoder) { e.Int(p.TotalStock) })
	})
}

func encodeClient(e *jx.Encoder, c client.Client) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		strField(e, "first_name", c.FirstName)
		strField(e, "last_name", c.LastName)
		strField(e, "full_name", c.DisplayName())
		strField(e, "email", c.Email)
		strField(e, "phone", c.Phone)
		strField(e, "address", c.Address)
		strField(e, "city", c.City)
		strField(e, "postal_code", c.PostalCode)
	})
}
