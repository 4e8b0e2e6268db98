// Package session owns the state of one sales session at the till: the cart,
// its checkout orchestrator and the product and client lists loaded from the
// back office.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/velo-till/internal/domain/cart"
	"github.com/xenking/velo-till/internal/domain/checkout"
	"github.com/xenking/velo-till/internal/domain/client"
	"github.com/xenking/velo-till/internal/domain/product"
)

var (
	// ErrUnknownProduct is returned for a product id absent from the loaded
	// catalog.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrUnknownClient is returned for a client id absent from the loaded
	// directory.
	ErrUnknownClient = errors.New("unknown client")
	// ErrInvalidQuantity is returned when adding less than one unit.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Deps are the collaborators of a Session.
type Deps struct {
	Catalog   product.Catalog
	Directory client.Directory
	Orders    checkout.OrderService
	Invoices  checkout.InvoiceService
	Documents checkout.DocumentSaver
	Checkout  checkout.Options
}

// Session is the single owner of a Cart and its Orchestrator.
type Session struct {
	catalog   product.Catalog
	directory client.Directory
	cart      *cart.Cart
	orch      *checkout.Orchestrator

	mu       sync.RWMutex
	products []product.Product
	clients  []client.Client
}

// New creates a session with an empty cart.
func New(deps Deps) (*Session, error) {
	c := cart.New()
	orch, err := checkout.NewOrchestrator(c, deps.Orders, deps.Invoices, deps.Documents, deps.Checkout)
	if err != nil {
		return nil, errors.Wrap(err, "create orchestrator")
	}
	return &Session{
		catalog:   deps.Catalog,
		directory: deps.Directory,
		cart:      c,
		orch:      orch,
	}, nil
}

// Load fetches the visible products and the clients concurrently. A list
// that fails to load keeps its previous content; the other one is still
// replaced.
func (s *Session) Load(ctx context.Context) error {
	lg := zctx.From(ctx)

	var g errgroup.Group
	g.Go(func() error {
		products, err := s.catalog.List(ctx, product.Filter{VisibleOnly: true})
		if err != nil {
			return errors.Wrap(err, "load products")
		}
		s.mu.Lock()
		s.products = products
		s.mu.Unlock()
		lg.Debug("Products loaded", zap.Int("count", len(products)))
		return nil
	})
	g.Go(func() error {
		if err := s.reloadClients(ctx); err != nil {
			return errors.Wrap(err, "load clients")
		}
		return nil
	})
	return g.Wait()
}

func (s *Session) reloadClients(ctx context.Context) error {
	clients, err := s.directory.List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.clients = clients
	s.mu.Unlock()
	zctx.From(ctx).Debug("Clients loaded", zap.Int("count", len(clients)))
	return nil
}

// Products searches the loaded catalog by name or reference.
func (s *Session) Products(query string) []product.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return product.Search(append([]product.Product(nil), s.products...), query)
}

// Clients searches the loaded client list.
func (s *Session) Clients(query string) []client.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return client.Search(append([]client.Client(nil), s.clients...), query)
}

// Product returns the loaded product with the given id.
func (s *Session) Product(id int64) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return product.Product{}, errors.Wrapf(ErrUnknownProduct, "id %d", id)
}

// Client returns the loaded client with the given id.
func (s *Session) Client(id int64) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return client.Client{}, errors.Wrapf(ErrUnknownClient, "id %d", id)
}

// CreateClient registers a new client in the back office and selects it for
// the current sale. When a checkout started during the remote call the client
// is still created but not selected, and checkout.ErrInProgress is returned.
func (s *Session) CreateClient(ctx context.Context, req client.CreateRequest) (*client.Client, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.orch.Busy() {
		return nil, checkout.ErrInProgress
	}

	created, err := s.directory.Create(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}
	selectErr := s.orch.Mutate(func() { s.cart.SetClient(created) })

	if err := s.reloadClients(ctx); err != nil {
		zctx.From(ctx).Warn("Reload clients after create", zap.Error(err))
		s.mu.Lock()
		s.clients = append(s.clients, *created)
		s.mu.Unlock()
	}
	if selectErr != nil {
		return nil, errors.Wrapf(selectErr, "client %d created but not selected", created.ID)
	}
	return created, nil
}

// SetStore selects the shop of the sale.
func (s *Session) SetStore(store cart.Store) error {
	return s.orch.Mutate(func() { s.cart.SetStore(store) })
}

// SelectClient selects a loaded client. A nil id clears the selection.
func (s *Session) SelectClient(id *int64) error {
	if id == nil {
		return s.orch.Mutate(func() { s.cart.SetClient(nil) })
	}
	c, err := s.Client(*id)
	if err != nil {
		return err
	}
	return s.orch.Mutate(func() { s.cart.SetClient(&c) })
}

// AddItem adds quantity units of a loaded product to the cart.
func (s *Session) AddItem(productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	p, err := s.Product(productID)
	if err != nil {
		return err
	}
	return s.orch.Mutate(func() { s.cart.AddItem(p, quantity) })
}

// Scan looks a barcode up in the catalog and adds one unit of the product.
// The cart is only touched if no checkout started during the lookup.
func (s *Session) Scan(ctx context.Context, barcode string) (*product.Product, error) {
	if s.orch.Busy() {
		return nil, checkout.ErrInProgress
	}
	p, err := s.catalog.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup barcode %q", barcode)
	}
	if err := s.orch.Mutate(func() { s.cart.AddItem(*p, 1) }); err != nil {
		return nil, err
	}
	zctx.From(ctx).Debug("Barcode scanned",
		zap.String("barcode", barcode),
		zap.Int64("product_id", p.ID),
	)
	return p, nil
}

// UpdateQuantity sets the quantity of a cart line, floored at 1.
func (s *Session) UpdateQuantity(productID int64, quantity int) error {
	return s.orch.Mutate(func() { s.cart.UpdateQuantity(productID, quantity) })
}

// RemoveItem deletes a cart line.
func (s *Session) RemoveItem(productID int64) error {
	return s.orch.Mutate(func() { s.cart.RemoveItem(productID) })
}

// ClearCart empties the cart, keeping the shop selection.
func (s *Session) ClearCart() error {
	return s.orch.Mutate(s.cart.Clear)
}

// SetPayment changes the payment choice of the sale.
func (s *Session) SetPayment(p checkout.Payment) error {
	return s.orch.SetPayment(p)
}

// Checkout submits the sale.
func (s *Session) Checkout(ctx context.Context) (*checkout.Result, error) {
	return s.orch.Checkout(ctx)
}

// Summary is the read model of the sale shown on the till.
type Summary struct {
	Cart    cart.Snapshot
	Payment checkout.Payment
	// Plan lists the installment amounts; a single amount unless paying in
	// installments.
	Plan      []decimal.Decimal
	State     checkout.State
	LastError error
}

// Summary returns the current state of the sale.
func (s *Session) Summary() Summary {
	snap := s.cart.Snapshot()
	pay := s.orch.Payment()
	return Summary{
		Cart:      snap,
		Payment:   pay,
		Plan:      checkout.InstallmentPlan(snap.TotalInclTax(), pay.Count()),
		State:     s.orch.State(),
		LastError: s.orch.LastError(),
	}
}
