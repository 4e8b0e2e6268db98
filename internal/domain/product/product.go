package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog entry that can be sold at the till.
type Product struct {
	ID        int64
	Name      string
	Reference string
	// PriceExclTax is the unit price before tax (HT).
	PriceExclTax decimal.Decimal
	// PriceInclTax is the unit price the customer pays (TTC).
	PriceInclTax decimal.Decimal
	// TaxRate is the flat TVA rate in percent, e.g. 20.00.
	TaxRate    decimal.Decimal
	Barcode    string
	TotalStock int
	Visible    bool
}

// Filter narrows catalog listings.
type Filter struct {
	// VisibleOnly excludes products hidden from the sales floor.
	VisibleOnly bool
}

// Catalog defines read operations on the remote product catalog.
type Catalog interface {
	List(ctx context.Context, filter Filter) ([]Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*Product, error)
}

// Search returns the products whose name or reference contains query,
// ignoring case. An empty query matches everything.
func Search(products []Product, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}

	var out []Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Reference), q) {
			out = append(out, p)
		}
	}
	return out
}
