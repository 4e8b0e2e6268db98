package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/velo-till/internal/domain/checkout"
	"github.com/xenking/velo-till/internal/domain/client"
	"github.com/xenking/velo-till/internal/domain/product"
	"github.com/xenking/velo-till/internal/session"
)

// --- Mock implementations ---

type mockCatalog struct{}

func (mockCatalog) List(context.Context, product.Filter) ([]product.Product, error) {
	return []product.Product{
		{
			ID: 1, Name: "Brompton C Line", Reference: "BRO-C",
			PriceExclTax: decimal.RequireFromString("100.00"),
			PriceInclTax: decimal.RequireFromString("120.00"),
			TaxRate:      decimal.RequireFromString("20.00"),
			Barcode:      "3700000000017", Visible: true,
		},
		{
			ID: 2, Name: "Casque", Reference: "CAS-1",
			PriceExclTax: decimal.RequireFromString("50.00"),
			PriceInclTax: decimal.RequireFromString("60.00"),
			TaxRate:      decimal.RequireFromString("20.00"),
			Visible:      true,
		},
	}, nil
}

func (m mockCatalog) GetByBarcode(ctx context.Context, code string) (*product.Product, error) {
	products, _ := m.List(ctx, product.Filter{})
	for _, p := range products {
		if p.Barcode == code {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

type mockDirectory struct{}

func (mockDirectory) List(context.Context) ([]client.Client, error) {
	return []client.Client{{ID: 7, FirstName: "Jeanne", LastName: "Martin", Email: "jeanne@example.com"}}, nil
}

func (mockDirectory) Create(_ context.Context, req client.CreateRequest) (*client.Client, error) {
	return &client.Client{ID: 8, FirstName: req.FirstName, LastName: req.LastName, Email: req.Email, Phone: req.Phone}, nil
}

type mockOrders struct {
	lastReq checkout.Request
}

func (m *mockOrders) Create(_ context.Context, req checkout.Request) (*checkout.Order, error) {
	m.lastReq = req
	return &checkout.Order{
		ID:      12,
		Number:  "CMD-20240101-0001",
		Invoice: checkout.InvoiceRef{ID: 34, Number: "FAC-20240101-0001"},
	}, nil
}

type mockInvoices struct {
	genErr error
}

func (m *mockInvoices) Generate(context.Context, int64) error { return m.genErr }

func (m *mockInvoices) Download(_ context.Context, ref checkout.InvoiceRef) (*checkout.Document, error) {
	return &checkout.Document{Number: ref.Number, Content: []byte("%PDF")}, nil
}

type mockSaver struct{}

func (mockSaver) Save(_ context.Context, name string, _ []byte) (string, error) {
	return "/srv/invoices/" + name, nil
}

// --- Helpers ---

type testEnv struct {
	srv      *httptest.Server
	orders   *mockOrders
	invoices *mockInvoices
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	env := &testEnv{orders: &mockOrders{}, invoices: &mockInvoices{}}
	s, err := session.New(session.Deps{
		Catalog:   mockCatalog{},
		Directory: mockDirectory{},
		Orders:    env.orders,
		Invoices:  env.invoices,
		Documents: mockSaver{},
	})
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background()))

	env.srv = httptest.NewServer(New(cfg, s).Router())
	t.Cleanup(env.srv.Close)
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, env.srv.URL+path, rd)
	require.NoError(t, err)

	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	env := newTestEnv(t, Config{})

	code, body := env.do(t, http.MethodGet, "/api/products?q=bro", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{
		"id": 1, "name": "Brompton C Line", "reference": "BRO-C",
		"price_ht": "100.00", "price_ttc": "120.00", "tva_rate": "20.00",
		"barcode": "3700000000017", "total_stock": 0
	}]`, body)
}

func TestListClients(t *testing.T) {
	env := newTestEnv(t, Config{})

	code, body := env.do(t, http.MethodGet, "/api/clients?q=martin", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"full_name":"Jeanne Martin"`)

	code, body = env.do(t, http.MethodGet, "/api/clients?q=nobody", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t, Config{})

	code, _ := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1, "quantity": 2}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPost, "/api/cart/scan", `{"barcode": "3700000000017"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 2}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPatch, "/api/cart/items/2", `{"quantity": 0}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPut, "/api/cart/store", `{"store": "garches"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{
		"store": "garches",
		"store_label": "Garches",
		"client": null,
		"items": [
			{"product_id": 1, "name": "Brompton C Line", "reference": "BRO-C", "quantity": 3,
			 "unit_price_ht": "100.00", "unit_price_ttc": "120.00", "tva_rate": "20.00", "total_ttc": "360.00"},
			{"product_id": 2, "name": "Casque", "reference": "CAS-1", "quantity": 1,
			 "unit_price_ht": "50.00", "unit_price_ttc": "60.00", "tva_rate": "20.00", "total_ttc": "60.00"}
		],
		"total_ht": "350.00",
		"total_tva": "70.00",
		"total_ttc": "420.00",
		"payment": {"method": "cash", "installments": 1, "plan": ["420.00"]},
		"checkout": {"state": "idle"}
	}`, body)

	code, _ = env.do(t, http.MethodDelete, "/api/cart/items/2", "")
	require.Equal(t, http.StatusOK, code)
	code, body = env.do(t, http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"items":[]`)
	assert.Contains(t, body, `"store":"garches"`)
}

func TestCartErrors(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"unknown product", http.MethodPost, "/api/cart/items", `{"product_id": 99}`, http.StatusNotFound},
		{"zero quantity", http.MethodPost, "/api/cart/items", `{"product_id": 1, "quantity": 0}`, http.StatusBadRequest},
		{"missing product id", http.MethodPost, "/api/cart/items", `{"quantity": 1}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/cart/items", `{"product_id": "x"`, http.StatusBadRequest},
		{"empty body", http.MethodPut, "/api/cart/store", ``, http.StatusBadRequest},
		{"unknown store", http.MethodPut, "/api/cart/store", `{"store": "paris"}`, http.StatusBadRequest},
		{"unknown client", http.MethodPut, "/api/cart/client", `{"client_id": 99}`, http.StatusNotFound},
		{"unknown barcode", http.MethodPost, "/api/cart/scan", `{"barcode": "000"}`, http.StatusNotFound},
		{"bad product id", http.MethodDelete, "/api/cart/items/abc", ``, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nope", ``, http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/checkout", ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, code, body)
			assert.Contains(t, body, `"code":`)
		})
	}
}

func TestSetPayment(t *testing.T) {
	env := newTestEnv(t, Config{})
	code, _ := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1, "quantity": 2}`)
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "installment"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"payment":{"method":"installment","installments":2,"plan":["120.00","120.00"]}`)

	code, body = env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "installment", "installments": 3}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"installments":3`)

	code, _ = env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "installment", "installments": 5}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "paypal"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "sumup"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"payment":{"method":"sumup","installments":1,"plan":["240.00"]}`)
}

func TestSetPayment_CountIgnoredOutsideInstallments(t *testing.T) {
	env := newTestEnv(t, Config{})
	code, _ := env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1}`)
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "cash", "installments": 1}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"payment":{"method":"cash","installments":1,"plan":["120.00"]}`)

	code, body = env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "card", "installments": 3}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"payment":{"method":"card","installments":1,"plan":["120.00"]}`)

	code, _ = env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "installment", "installments": 1}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCheckout(t *testing.T) {
	env := newTestEnv(t, Config{})

	code, body := env.do(t, http.MethodPost, "/api/checkout", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.JSONEq(t, `{"code": 422, "message": "Please select a client"}`, body)

	code, _ = env.do(t, http.MethodPut, "/api/cart/client", `{"client_id": 7}`)
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPost, "/api/checkout", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body, "The cart is empty")

	code, _ = env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 1, "quantity": 2}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodPut, "/api/checkout/payment", `{"method": "card"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.JSONEq(t, `{
		"order": {"id": 12, "order_number": "CMD-20240101-0001",
		          "invoice": {"id": 34, "invoice_number": "FAC-20240101-0001"}},
		"file_name": "invoice_FAC-20240101-0001.pdf",
		"location": "/srv/invoices/invoice_FAC-20240101-0001.pdf",
		"delivery_error": null
	}`, body)

	assert.Equal(t, int64(7), env.orders.lastReq.ClientID)
	assert.Equal(t, checkout.PaymentCard, env.orders.lastReq.PaymentMethod)

	code, body = env.do(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"items":[]`)
	assert.Contains(t, body, `"client":null`)
	assert.Contains(t, body, `"method":"cash"`)
	assert.Contains(t, body, `"state":"succeeded"`)
}

func TestCheckout_StepFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.invoices.genErr = errors.New("renderer down")

	code, _ := env.do(t, http.MethodPost, "/api/clients",
		`{"first_name": "Paul", "last_name": "Durand", "email": "paul@example.com", "phone": "0700000000"}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = env.do(t, http.MethodPost, "/api/cart/items", `{"product_id": 2}`)
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(t, http.MethodPost, "/api/checkout", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body, `"order_number":"CMD-20240101-0001"`)
	assert.Contains(t, body, `"step":"generate_invoice"`)

	code, body = env.do(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"state":"failed"`)
	assert.Contains(t, body, `"product_id":2`)
	assert.Contains(t, body, `"first_name":"Paul"`)
}

func TestCreateClient_Invalid(t *testing.T) {
	env := newTestEnv(t, Config{})

	code, body := env.do(t, http.MethodPost, "/api/clients", `{"first_name": "Paul", "email": "not-an-email"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body, "email must be a valid email")
	assert.Contains(t, body, "last_name is required")
}

func TestReload(t *testing.T) {
	env := newTestEnv(t, Config{})

	code, body := env.do(t, http.MethodPost, "/api/session/reload", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"products": 2, "clients": 1}`, body)
}

func TestAPIKey(t *testing.T) {
	env := newTestEnv(t, Config{APIKey: "s3cret"})

	code, body := env.do(t, http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.JSONEq(t, `{"code": 401, "message": "invalid API key"}`, body)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/cart", nil)
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, "s3cret")
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{checkout.ErrInProgress, http.StatusConflict},
		{errors.Wrap(checkout.ErrAbandoned, "submit_order"), http.StatusServiceUnavailable},
		{&checkout.StepError{Step: checkout.StepSubmitOrder, Err: errors.New("x")}, http.StatusBadGateway},
		{
			&checkout.StepError{
				Step:  checkout.StepGenerateInvoice,
				Order: &checkout.Order{Number: "CMD-1"},
				Err:   errors.Wrap(checkout.ErrAbandoned, "generate_invoice"),
			},
			http.StatusServiceUnavailable,
		},
		{upstream(errors.New("connection refused")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := errorStatus(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
