// Package checkout turns the cart into a submitted order and a downloaded
// invoice document.
package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/velo-till/internal/domain/cart"
)

// RequestItem is one order line as sent to the order service.
type RequestItem struct {
	ProductID   int64
	Quantity    int
	UnitExclTax decimal.Decimal
	UnitInclTax decimal.Decimal
	TaxRate     decimal.Decimal
}

// Request is the order submission built from a cart snapshot.
type Request struct {
	ClientID      int64
	Store         cart.Store
	Items         []RequestItem
	PaymentMethod PaymentMethod
	// Installments is 1 unless PaymentMethod is PaymentInstallment.
	Installments int
}

// NewRequest builds the order submission for snap. The snapshot must have a
// client selected.
func NewRequest(snap cart.Snapshot, pay Payment) Request {
	items := make([]RequestItem, len(snap.Items))
	for i, li := range snap.Items {
		items[i] = RequestItem{
			ProductID:   li.Product.ID,
			Quantity:    li.Quantity,
			UnitExclTax: li.Product.PriceExclTax,
			UnitInclTax: li.Product.PriceInclTax,
			TaxRate:     li.Product.TaxRate,
		}
	}

	req := Request{
		Store:         snap.Store,
		Items:         items,
		PaymentMethod: pay.Method,
		Installments:  pay.Count(),
	}
	if snap.Client != nil {
		req.ClientID = snap.Client.ID
	}
	return req
}

// InvoiceRef identifies the invoice the back office attached to an order.
type InvoiceRef struct {
	ID     int64
	Number string
}

// Order is the order record returned by the order service.
type Order struct {
	ID      int64
	Number  string
	Invoice InvoiceRef
}

// Document is a rendered invoice.
type Document struct {
	Number  string
	Content []byte
}

// FileName returns the name the invoice document is saved under.
func FileName(invoiceNumber string) string {
	return fmt.Sprintf("invoice_%s.pdf", invoiceNumber)
}

// OrderService submits orders. When the order was created but the answer is
// unusable, Create returns the partially known Order along with the error.
type OrderService interface {
	Create(ctx context.Context, req Request) (*Order, error)
}

// InvoiceService renders and serves invoice documents.
type InvoiceService interface {
	Generate(ctx context.Context, invoiceID int64) error
	Download(ctx context.Context, ref InvoiceRef) (*Document, error)
}

// DocumentSaver delivers a downloaded document to the operator and returns
// where it was stored.
type DocumentSaver interface {
	Save(ctx context.Context, name string, content []byte) (string, error)
}

// Result describes a completed checkout.
type Result struct {
	Order    Order
	FileName string
	// Location is where the invoice was saved. Empty when DeliveryErr is set.
	Location string
	// DeliveryErr reports a failure to save the invoice locally. The order
	// and the invoice exist regardless.
	DeliveryErr error
}
