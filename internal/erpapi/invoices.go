package erpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/velo-till/internal/domain/checkout"
)

var _ checkout.InvoiceService = (*InvoiceService)(nil)

// InvoiceService implements checkout.InvoiceService over the invoices
// endpoints.
type InvoiceService struct {
	c *Client
}

// NewInvoiceService returns an InvoiceService using c.
func NewInvoiceService(c *Client) *InvoiceService {
	return &InvoiceService{c: c}
}

// Generate asks the back office to render the invoice document.
func (s *InvoiceService) Generate(ctx context.Context, invoiceID int64) error {
	path := "/invoices/" + strconv.FormatInt(invoiceID, 10) + "/generate-pdf/"
	if _, err := s.c.do(ctx, http.MethodPost, path, nil); err != nil {
		return errors.Wrapf(err, "generate invoice %d", invoiceID)
	}
	return nil
}

// Download fetches the rendered invoice document.
func (s *InvoiceService) Download(ctx context.Context, ref checkout.InvoiceRef) (*checkout.Document, error) {
	path := "/invoices/" + strconv.FormatInt(ref.ID, 10) + "/download/"
	data, err := s.c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "download invoice %d", ref.ID)
	}
	if len(data) == 0 {
		return nil, errors.Errorf("invoice %d: empty document", ref.ID)
	}
	return &checkout.Document{Number: ref.Number, Content: data}, nil
}
