// Package cart holds the sale in progress at the till: the selected shop,
// the selected client and the line items, with totals derived from the items.
package cart

import (
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/velo-till/internal/domain/client"
	"github.com/xenking/velo-till/internal/domain/product"
)

// Store identifies the physical shop the till is located in.
type Store string

const (
	// StoreVilleAvray is the Ville-d'Avray shop, the default location.
	StoreVilleAvray Store = "ville_avray"
	// StoreGarches is the Garches shop.
	StoreGarches Store = "garches"
)

// ErrUnknownStore is returned when parsing a store identifier fails.
var ErrUnknownStore = errors.New("unknown store")

// ParseStore converts a wire identifier into a Store.
func ParseStore(s string) (Store, error) {
	switch Store(s) {
	case StoreVilleAvray, StoreGarches:
		return Store(s), nil
	default:
		return "", errors.Wrapf(ErrUnknownStore, "%q", s)
	}
}

// Label returns the human-readable shop name.
func (s Store) Label() string {
	switch s {
	case StoreVilleAvray:
		return "Ville d'Avray"
	case StoreGarches:
		return "Garches"
	default:
		return string(s)
	}
}

// LineItem is one product in the cart with its quantity. Quantity is at
// least 1.
type LineItem struct {
	Product  product.Product
	Quantity int
}

// TotalInclTax returns the line total including tax.
func (li LineItem) TotalInclTax() decimal.Decimal {
	return li.Product.PriceInclTax.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// TotalExclTax returns the line total excluding tax.
func (li LineItem) TotalExclTax() decimal.Decimal {
	return li.Product.PriceExclTax.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is the sale in progress. It is owned by a single sales session; the
// mutex only protects it from the HTTP server's goroutines.
type Cart struct {
	mu     sync.Mutex
	items  []LineItem
	store  Store
	client *client.Client
}

// New returns an empty cart located at the default shop.
func New() *Cart {
	return &Cart{store: StoreVilleAvray}
}

// SetStore selects the shop the sale is made in.
func (c *Cart) SetStore(s Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = s
}

// Store returns the selected shop.
func (c *Cart) Store() Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// SetClient replaces the selected client. A nil client clears the selection.
func (c *Cart) SetClient(cl *client.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl == nil {
		c.client = nil
		return
	}
	cp := *cl
	c.client = &cp
}

// Client returns a copy of the selected client, or nil.
func (c *Cart) Client() *client.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	cp := *c.client
	return &cp
}

// AddItem adds quantity units of p. If p is already in the cart its quantity
// is incremented, otherwise a new line is appended. Passing a quantity below
// 1 is a programming error.
func (c *Cart) AddItem(p product.Product, quantity int) {
	if quantity < 1 {
		panic(fmt.Sprintf("cart: AddItem quantity must be at least 1, got %d", quantity))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(p.ID); i >= 0 {
		c.items[i].Quantity += quantity
		return
	}
	c.items = append(c.items, LineItem{Product: p, Quantity: quantity})
}

// RemoveItem deletes the line for productID. Unknown ids are ignored.
func (c *Cart) RemoveItem(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// UpdateQuantity sets the quantity of productID, clamped to at least 1.
// Unknown ids are ignored.
func (c *Cart) UpdateQuantity(productID int64, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	c.items[i].Quantity = max(1, quantity)
}

// Clear empties the cart and unselects the client. The shop selection is
// kept: it belongs to the till, not to the sale.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.client = nil
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LineItem(nil), c.items...)
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// TotalInclTax returns the sum of the line totals including tax.
func (c *Cart) TotalInclTax() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalInclTax(c.items)
}

// TotalExclTax returns the sum of the line totals excluding tax.
func (c *Cart) TotalExclTax() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalExclTax(c.items)
}

// TaxAmount returns the TVA included in the cart total.
func (c *Cart) TaxAmount() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalInclTax(c.items).Sub(totalExclTax(c.items))
}

// Snapshot returns a copy of the cart that later mutations do not affect.
func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Store: c.store,
		Items: append([]LineItem(nil), c.items...),
	}
	if c.client != nil {
		cp := *c.client
		s.Client = &cp
	}
	return s
}

func (c *Cart) indexOf(productID int64) int {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Snapshot is a point-in-time copy of a Cart.
type Snapshot struct {
	Store  Store
	Client *client.Client
	Items  []LineItem
}

// TotalInclTax returns the sum of the line totals including tax.
func (s Snapshot) TotalInclTax() decimal.Decimal { return totalInclTax(s.Items) }

// TotalExclTax returns the sum of the line totals excluding tax.
func (s Snapshot) TotalExclTax() decimal.Decimal { return totalExclTax(s.Items) }

// TaxAmount returns the TVA included in the total.
func (s Snapshot) TaxAmount() decimal.Decimal {
	return s.TotalInclTax().Sub(s.TotalExclTax())
}

func totalInclTax(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.TotalInclTax())
	}
	return total
}

func totalExclTax(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.TotalExclTax())
	}
	return total
}
