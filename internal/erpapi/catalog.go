package erpapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/velo-till/internal/domain/product"
)

var _ product.Catalog = (*CatalogService)(nil)

// CatalogService implements product.Catalog over the products endpoints.
type CatalogService struct {
	c *Client
}

// NewCatalogService returns a CatalogService using c.
func NewCatalogService(c *Client) *CatalogService {
	return &CatalogService{c: c}
}

// List returns every product matching filter, following pagination.
func (s *CatalogService) List(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	path := "/products/"
	if filter.VisibleOnly {
		path += "?is_visible=true"
	}

	var out []product.Product
	for path != "" {
		data, err := s.c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, errors.Wrap(err, "list products")
		}
		next, err := decodeList(data, func(d *jx.Decoder) error {
			p, err := decodeProduct(d)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "decode products")
		}
		path = next
	}

	if filter.VisibleOnly {
		visible := out[:0]
		for _, p := range out {
			if p.Visible {
				visible = append(visible, p)
			}
		}
		out = visible
	}
	return out, nil
}

// GetByBarcode looks a product up by its barcode.
func (s *CatalogService) GetByBarcode(ctx context.Context, barcode string) (*product.Product, error) {
	data, err := s.c.do(ctx, http.MethodGet, "/products/barcode/"+url.PathEscape(barcode)+"/", nil)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product by barcode")
	}

	p, err := decodeProduct(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	return &p, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	p := product.Product{Visible: true}
	var (
		stockVilleAvray, stockGarches int64
		hasTotal                      bool
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = decodeInt(d)
		case "name":
			p.Name, err = decodeString(d)
		case "reference":
			p.Reference, err = decodeString(d)
		case "price_ht":
			p.PriceExclTax, err = decodeDecimal(d)
		case "price_ttc":
			p.PriceInclTax, err = decodeDecimal(d)
		case "tva_rate":
			p.TaxRate, err = decodeDecimal(d)
		case "barcode":
			p.Barcode, err = decodeString(d)
		case "is_visible":
			p.Visible, err = decodeBool(d)
		case "total_stock":
			var n int64
			n, err = decodeInt(d)
			p.TotalStock = int(n)
			hasTotal = true
		case "stock_ville_avray":
			stockVilleAvray, err = decodeInt(d)
		case "stock_garches":
			stockGarches, err = decodeInt(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, err
	}
	if !hasTotal {
		p.TotalStock = int(stockVilleAvray + stockGarches)
	}
	return p, nil
}
